package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/gitutil"
	"github.com/sevigo/commit-digest/internal/jobs"
	"github.com/sevigo/commit-digest/internal/storage"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <commit-id | sha | commit-url>",
	Short: "Renders the stored summary of a commit",
	Long: `Summary looks the commit up by id, by sha when --repo is given, or by a
GitHub commit URL, and renders its summary as markdown in the terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, _ := cmd.Flags().GetString("repo")
		raw, _ := cmd.Flags().GetBool("raw")
		width, _ := cmd.Flags().GetInt("width")

		ref := args[0]
		if owner, name, sha, err := gitutil.ParseCommitURL(ref); err == nil {
			repo, ref = owner+"/"+name, sha
		} else if repo != "" {
			if repo, err = gitutil.ParseRepository(repo); err != nil {
				return err
			}
		}

		env, cleanup, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := commandContext(cmd)
		var commit *core.Commit
		if repo != "" {
			project, err := env.projects.GetProjectByRepository(ctx, repo)
			if err != nil {
				return lookupError("repository "+repo, err)
			}
			if commit, err = env.commits.GetCommitBySHA(ctx, project.ID, ref); err != nil {
				return lookupError("commit "+ref, err)
			}
			if ok, err := writeStructured(env.out, env.format, commit); ok {
				return err
			}
			return printSummary(env, commit, project.RepositoryFullName, raw, width)
		}

		if commit, err = env.commits.GetCommit(ctx, ref); err != nil {
			return lookupError("commit "+ref, err)
		}
		if ok, err := writeStructured(env.out, env.format, commit); ok {
			return err
		}
		repoName := ""
		if project, err := env.projects.GetProject(ctx, commit.ProjectID); err == nil {
			repoName = project.RepositoryFullName
		}
		return printSummary(env, commit, repoName, raw, width)
	},
}

func printSummary(env *cliEnv, commit *core.Commit, repo string, raw bool, width int) error {
	md := summaryMarkdown(commit, repo)
	if raw {
		_, err := fmt.Fprint(env.out, md)
		return err
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	_, err = fmt.Fprint(env.out, out)
	return err
}

func summaryMarkdown(c *core.Commit, repo string) string {
	var b strings.Builder
	title := c.ShortSHA()
	if repo != "" {
		title = repo + " @ " + title
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	subject, _, _ := strings.Cut(c.Message, "\n")
	fmt.Fprintf(&b, "**%s**\n\n", subject)

	meta := []string{"by " + c.AuthorName}
	if c.Branch != "" {
		meta = append(meta, "on `"+c.Branch+"`")
	}
	if c.ChangeType != nil {
		meta = append(meta, *c.ChangeType)
	}
	if c.Confidence != nil {
		meta = append(meta, fmt.Sprintf("confidence %.2f", *c.Confidence))
	}
	fmt.Fprintf(&b, "_%s_\n\n", strings.Join(meta, " · "))

	if c.HasSummary() {
		b.WriteString(*c.Summary)
		b.WriteString("\n\n")
	} else {
		b.WriteString("> No summary has been generated for this commit yet.\n\n")
	}

	fmt.Fprintf(&b, "- Files changed: %d (+%d / -%d)\n", c.FilesChanged, c.Additions, c.Deletions)
	if c.PRNumber != nil {
		pr := fmt.Sprintf("#%d", *c.PRNumber)
		if c.PRTitle != nil {
			pr += " " + *c.PRTitle
		}
		fmt.Fprintf(&b, "- Pull request: %s\n", pr)
	}
	if refs := jobs.ExtractIssueRefs(c.Message); len(refs) > 0 {
		fmt.Fprintf(&b, "- Issues: %s\n", strings.Join(refs, ", "))
	}
	if c.URL != "" {
		fmt.Fprintf(&b, "- [View on GitHub](%s)\n", c.URL)
	}
	fmt.Fprintf(&b, "- Email sent: %t\n", c.EmailSent)
	return b.String()
}

func lookupError(what string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s not found", what)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	summaryCmd.Flags().String("repo", "", "Repository (owner/name or URL); treats the argument as a sha")
	summaryCmd.Flags().Bool("raw", false, "Print the markdown without rendering it")
	summaryCmd.Flags().Int("width", 100, "Word wrap width")
	rootCmd.AddCommand(summaryCmd)
}
