package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sevigo/commit-digest/internal/core"
)

type statsView struct {
	Counts             map[core.JobStatus]int64 `json:"counts"`
	Total              int64                    `json:"total"`
	OldestPendingSince *time.Time               `json:"oldest_pending_since,omitempty"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows job counts per status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, cleanup, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := env.jobs.GetQueueStats(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("failed to load queue stats: %w", err)
		}
		view := statsView{Counts: stats.Counts, Total: stats.Total, OldestPendingSince: stats.OldestPendingSince}
		if ok, err := writeStructured(env.out, env.format, view); ok {
			return err
		}
		fmt.Fprintln(env.out, renderStats(stats, time.Now()))
		return nil
	},
}

var (
	statsBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
	statsLabel = lipgloss.NewStyle().Width(11).Foreground(lipgloss.Color("245"))
	statsTitle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
)

func renderStats(stats *core.QueueStats, now time.Time) string {
	lines := []string{statsTitle.Render("Job queue")}
	for _, s := range core.AllJobStatuses {
		count := fmt.Sprintf("%d", stats.Counts[s])
		if c, ok := statusColors[s]; ok {
			count = c.Sprint(count)
		}
		lines = append(lines, statsLabel.Render(string(s))+" "+count)
	}
	lines = append(lines, "", statsLabel.Render("total")+fmt.Sprintf(" %d", stats.Total))
	if stats.OldestPendingSince != nil {
		lines = append(lines, statsLabel.Render("oldest")+" pending since "+since(*stats.OldestPendingSince, now))
	}
	return statsBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.AddCommand(statsCmd)
}
