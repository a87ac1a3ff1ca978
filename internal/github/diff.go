package github

import (
	"strings"

	"github.com/sevigo/commit-digest/internal/core"
)

// SynthesizeDiff builds unified diff text from per-file patches. It is used
// when a comparison has no raw diff. Files without a patch (binary or too
// large) are listed by header only.
func SynthesizeDiff(files []core.DiffFile) string {
	var b strings.Builder
	for _, f := range files {
		oldName := f.Filename
		if f.PreviousFilename != "" {
			oldName = f.PreviousFilename
		}

		b.WriteString("diff --git a/" + oldName + " b/" + f.Filename + "\n")
		switch f.Status {
		case "added":
			b.WriteString("new file mode 100644\n")
		case "removed":
			b.WriteString("deleted file mode 100644\n")
		case "renamed":
			b.WriteString("rename from " + oldName + "\n")
			b.WriteString("rename to " + f.Filename + "\n")
		}

		if f.Patch == "" {
			b.WriteString("Binary files differ\n")
			continue
		}

		from, to := "a/"+oldName, "b/"+f.Filename
		if f.Status == "added" {
			from = "/dev/null"
		}
		if f.Status == "removed" {
			to = "/dev/null"
		}
		b.WriteString("--- " + from + "\n")
		b.WriteString("+++ " + to + "\n")
		b.WriteString(f.Patch)
		if !strings.HasSuffix(f.Patch, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// CountDiffLines returns the added and removed line counts of a unified diff,
// ignoring file headers.
func CountDiffLines(diff string) (additions, deletions int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}
