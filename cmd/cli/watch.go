package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sevigo/commit-digest/internal/core"
)

// queueSource is the part of the job store the dashboard reads.
type queueSource interface {
	GetQueueStats(ctx context.Context) (*core.QueueStats, error)
	GetJobsByFilter(ctx context.Context, filter core.JobFilter) ([]*core.Job, error)
}

// Filters cycled with the f key. The empty status shows everything.
var watchFilters = []core.JobStatus{"", core.JobStatusPending, core.JobStatusRunning, core.JobStatusFailed}

type tickMsg time.Time

type snapshotMsg struct {
	stats *core.QueueStats
	jobs  []*core.Job
	at    time.Time
	err   error
}

type watchModel struct {
	source   queueSource
	interval time.Duration
	limit    int
	now      func() time.Time

	theme   ThemeName
	styles  styles
	spinner spinner.Model
	table   table.Model

	filter    int
	loading   bool
	stats     *core.QueueStats
	updatedAt time.Time
	err       error
	width     int
}

func newWatchModel(source queueSource, interval time.Duration, limit int, theme ThemeName) *watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Points

	t := table.New(
		table.WithColumns(jobColumns(120)),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	m := &watchModel{
		source:   source,
		interval: interval,
		limit:    limit,
		now:      time.Now,
		spinner:  sp,
		table:    t,
		loading:  true,
	}
	m.applyTheme(theme)
	return m
}

func (m *watchModel) applyTheme(theme ThemeName) {
	m.theme = theme
	m.styles = GetTheme(theme)
	m.spinner.Style = m.styles.count
	ts := table.DefaultStyles()
	ts.Header = ts.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	ts.Selected = m.styles.selected
	m.table.SetStyles(ts)
}

func jobColumns(width int) []table.Column {
	errWidth := max(width-8-20-11-6-9-10-14, 10)
	return []table.Column{
		{Title: "ID", Width: 8},
		{Title: "TYPE", Width: 20},
		{Title: "STATUS", Width: 11},
		{Title: "PRIO", Width: 6},
		{Title: "TRIES", Width: 9},
		{Title: "COMMIT", Width: 10},
		{Title: "AGE", Width: 14},
		{Title: "ERROR", Width: errWidth},
	}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.spinner.Tick)
}

func (m *watchModel) statusFilter() core.JobStatus {
	return watchFilters[m.filter]
}

func (m *watchModel) load() tea.Cmd {
	source, limit, status, now := m.source, m.limit, m.statusFilter(), m.now
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stats, err := source.GetQueueStats(ctx)
		if err != nil {
			return snapshotMsg{err: err, at: now()}
		}
		filter := core.JobFilter{Limit: limit}
		if status != "" {
			filter.Statuses = []core.JobStatus{status}
		}
		list, err := source.GetJobsByFilter(ctx, filter)
		return snapshotMsg{stats: stats, jobs: list, at: now(), err: err}
	}
}

func (m *watchModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, m.load()
		case "f":
			m.filter = (m.filter + 1) % len(watchFilters)
			m.loading = true
			return m, m.load()
		case "t":
			m.applyTheme(nextTheme(m.theme))
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetColumns(jobColumns(msg.Width - 4))
		m.table.SetHeight(max(msg.Height-14, 5))
		return m, nil

	case tickMsg:
		m.loading = true
		return m, m.load()

	case snapshotMsg:
		m.loading = false
		m.updatedAt = msg.at
		m.err = msg.err
		if msg.err == nil {
			m.stats = msg.stats
			m.table.SetRows(jobRows(msg.jobs, msg.at))
		}
		return m, m.scheduleTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func jobRows(list []*core.Job, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(list))
	for _, j := range list {
		commit := ""
		if j.CommitID != nil {
			commit = shortID(*j.CommitID)
		}
		errMsg := ""
		if j.ErrorMessage != nil {
			errMsg = truncate(*j.ErrorMessage, 80)
		}
		rows = append(rows, table.Row{
			shortID(j.ID),
			string(j.Type),
			string(j.Status),
			fmt.Sprintf("%d", j.Priority),
			fmt.Sprintf("%d/%d", j.Attempts, j.MaxAttempts),
			commit,
			since(j.CreatedAt, now),
			errMsg,
		})
	}
	return rows
}

func (m *watchModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.header.Render("COMMIT-DIGEST QUEUE"))
	b.WriteString("\n")
	b.WriteString(m.countsLine())
	b.WriteString("\n\n")
	b.WriteString(m.table.View())

	status := m.styles.inactive.Render("updated " + m.updatedAt.Format("15:04:05"))
	if m.loading {
		status = m.spinner.View() + " refreshing"
	}
	if m.err != nil {
		status = m.styles.error.Render("⚠ " + m.err.Error())
	}
	filter := "all"
	if s := m.statusFilter(); s != "" {
		filter = string(s)
	}
	help := fmt.Sprintf("%s  ·  filter: %s  ·  theme: %s  ·  r refresh  f filter  t theme  q quit", status, filter, m.theme)
	b.WriteString(m.styles.footer.Render(help))
	return m.styles.app.Render(b.String())
}

func (m *watchModel) countsLine() string {
	if m.stats == nil {
		return m.styles.inactive.Render("loading queue statistics...")
	}
	parts := make([]string, 0, len(core.AllJobStatuses)+1)
	for _, s := range core.AllJobStatuses {
		parts = append(parts, fmt.Sprintf("%s %s", s, m.styles.count.Render(fmt.Sprintf("%d", m.stats.Counts[s]))))
	}
	parts = append(parts, "total "+m.styles.success.Render(fmt.Sprintf("%d", m.stats.Total)))
	return strings.Join(parts, "   ")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of the job queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		limit, _ := cmd.Flags().GetInt("limit")
		themeFlag, _ := cmd.Flags().GetString("theme")

		theme := ThemeName(themeFlag)
		if _, ok := palettes[theme]; !ok {
			return fmt.Errorf("invalid theme %q; available: %v", themeFlag, ListThemes())
		}
		if interval <= 0 {
			return fmt.Errorf("--interval must be positive")
		}

		env, cleanup, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		p := tea.NewProgram(newWatchModel(env.jobs, interval, limit, theme), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running dashboard: %w", err)
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	watchCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval")
	watchCmd.Flags().Int("limit", 50, "Number of jobs shown")
	watchCmd.Flags().String("theme", string(ThemeCyan), "UI theme (cyan, matrix, amber, dracula)")
	rootCmd.AddCommand(watchCmd)
}
