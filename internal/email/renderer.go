// Package email renders commit notifications and delivers them.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sevigo/commit-digest/internal/core"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Renderer turns summarized commits into HTML email bodies.
type Renderer struct {
	templates    map[core.EmailTemplateType]*template.Template
	dashboardURL string
	title        cases.Caser
}

// NewRenderer parses the embedded templates, one per template type.
func NewRenderer(dashboardURL string) (*Renderer, error) {
	r := &Renderer{
		templates:    make(map[core.EmailTemplateType]*template.Template),
		dashboardURL: dashboardURL,
		title:        cases.Title(language.English),
	}
	funcs := template.FuncMap{"join": strings.Join}
	for _, tt := range []core.EmailTemplateType{core.EmailTemplateSingleCommit, core.EmailTemplateDigest, core.EmailTemplateWeeklySummary} {
		tmpl, err := template.New(string(tt)).Funcs(funcs).ParseFS(templateFiles,
			"templates/layout.html", "templates/"+string(tt)+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s email template: %w", tt, err)
		}
		r.templates[tt] = tmpl
	}
	return r, nil
}

// RenderInput is everything a notification is built from.
type RenderInput struct {
	Project      *core.Project
	Commits      []*core.Commit
	TemplateType core.EmailTemplateType
	Subject      string
}

type commitView struct {
	SHA         string
	ShortSHA    string
	Title       string
	Summary     string
	ChangeType  string
	ChangeLabel string
	Author      string
	Branch      string
	URL         string
	PRNumber    int
	PRTitle     string
	PRURL       string
}

type changeCounts struct {
	Features int
	Bugfixes int
}

type pageView struct {
	Subject      string
	Repository   string
	DashboardURL string
	Commits      []commitView
	Counts       changeCounts
	Authors      []string
}

// Render returns the subject and HTML body. An empty in.Subject gets a
// default derived from the commits.
func (r *Renderer) Render(in RenderInput) (string, string, error) {
	tmpl, ok := r.templates[in.TemplateType]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", in.TemplateType)
	}
	if in.Project == nil || len(in.Commits) == 0 {
		return "", "", fmt.Errorf("email needs a project and at least one commit")
	}

	page := pageView{
		Repository:   in.Project.RepositoryFullName,
		DashboardURL: r.dashboardURL,
	}
	authors := map[string]struct{}{}
	for _, c := range in.Commits {
		v := r.viewOf(c)
		page.Commits = append(page.Commits, v)
		if v.ChangeType == string(core.ChangeTypeBugfix) {
			page.Counts.Bugfixes++
		} else {
			page.Counts.Features++
		}
		if v.Author != "" {
			authors[v.Author] = struct{}{}
		}
	}
	for a := range authors {
		page.Authors = append(page.Authors, a)
	}
	sort.Strings(page.Authors)

	page.Subject = in.Subject
	if page.Subject == "" {
		page.Subject = defaultSubject(in.TemplateType, page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		return "", "", fmt.Errorf("failed to render %s email: %w", in.TemplateType, err)
	}
	return page.Subject, buf.String(), nil
}

func (r *Renderer) viewOf(c *core.Commit) commitView {
	v := commitView{
		SHA:      c.SHA,
		ShortSHA: c.ShortSHA(),
		Title:    firstLine(c.Message),
		Author:   c.AuthorLogin,
		Branch:   c.Branch,
		URL:      c.URL,
	}
	if v.Author == "" {
		v.Author = c.AuthorName
	}
	if c.Summary != nil {
		v.Summary = *c.Summary
	}
	v.ChangeType = string(core.ChangeTypeFeature)
	if c.ChangeType != nil && *c.ChangeType != "" {
		v.ChangeType = *c.ChangeType
	}
	v.ChangeLabel = r.title.String(v.ChangeType)
	if c.PRNumber != nil {
		v.PRNumber = *c.PRNumber
	}
	if c.PRTitle != nil {
		v.PRTitle = *c.PRTitle
	}
	if c.PRURL != nil {
		v.PRURL = *c.PRURL
	}
	return v
}

func defaultSubject(tt core.EmailTemplateType, page pageView) string {
	switch tt {
	case core.EmailTemplateDigest:
		return fmt.Sprintf("[%s] %d new commits", page.Repository, len(page.Commits))
	case core.EmailTemplateWeeklySummary:
		return fmt.Sprintf("[%s] Weekly summary: %d commits", page.Repository, len(page.Commits))
	default:
		c := page.Commits[0]
		return fmt.Sprintf("[%s] %s: %s", page.Repository, c.ShortSHA, c.Title)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
