package jobs

import "regexp"

var (
	trackerRefPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)
	hashRefPattern    = regexp.MustCompile(`(?:^|[^\w&/])(#\d+)\b`)
)

// ExtractIssueRefs returns tracker keys (ABC-123) and GitHub references (#42)
// found in texts, deduplicated in order of appearance.
func ExtractIssueRefs(texts ...string) []string {
	seen := map[string]struct{}{}
	var refs []string
	add := func(ref string) {
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	for _, text := range texts {
		for _, ref := range trackerRefPattern.FindAllString(text, -1) {
			add(ref)
		}
		for _, m := range hashRefPattern.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	}
	return refs
}
