package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/sevigo/commit-digest/internal/core"
	"github.com/sevigo/commit-digest/internal/jobs"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func parseFormat(v string) (string, error) {
	switch strings.ToLower(v) {
	case "", formatTable:
		return formatTable, nil
	case formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", v)
	}
}

// writeStructured prints v as json or yaml. It reports false for table output.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(v)
	case formatYAML:
		// Round-trip through json so yaml keys follow the json tags.
		raw, err := json.Marshal(v)
		if err != nil {
			return true, err
		}
		var generic any
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return true, err
		}
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(generic); err != nil {
			return true, err
		}
		return true, encoder.Close()
	default:
		return false, nil
	}
}

var statusColors = map[core.JobStatus]*color.Color{
	core.JobStatusPending:   color.New(color.FgYellow),
	core.JobStatusRunning:   color.New(color.FgCyan, color.Bold),
	core.JobStatusCompleted: color.New(color.FgGreen),
	core.JobStatusFailed:    color.New(color.FgRed, color.Bold),
	core.JobStatusCancelled: color.New(color.FgHiBlack),
}

func colorStatus(s core.JobStatus) string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(string(s))
	}
	return string(s)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func since(t time.Time, now time.Time) string {
	d := now.Sub(t).Round(time.Second)
	if d < 0 {
		return "in " + (-d).String()
	}
	return d.String() + " ago"
}

func writeJobsTable(w io.Writer, views []jobs.JobView, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tPRIO\tATTEMPTS\tCOMMIT\tCREATED\tERROR")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d/%d\t%s\t%s\t%s\n",
			shortID(v.ID),
			v.Type,
			colorStatus(v.Status),
			v.Priority,
			v.Attempts, v.MaxAttempts,
			shortID(v.CommitID),
			since(v.CreatedAt, now),
			truncate(v.Error, 60),
		)
	}
	return tw.Flush()
}

func writeJobDetail(w io.Writer, v jobs.JobView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k string, val any) { fmt.Fprintf(tw, "%s:\t%v\n", k, val) }
	row("ID", v.ID)
	row("Type", v.Type)
	row("Status", colorStatus(v.Status))
	row("Priority", v.Priority)
	row("Attempts", fmt.Sprintf("%d/%d", v.Attempts, v.MaxAttempts))
	if v.ProjectID != "" {
		row("Project", v.ProjectID)
	}
	if v.CommitID != "" {
		row("Commit", v.CommitID)
	}
	if len(v.DependsOn) > 0 {
		row("Depends on", strings.Join(v.DependsOn, ", "))
	}
	row("Scheduled", v.ScheduledFor.Format(time.RFC3339))
	if v.RetryAfter != nil {
		row("Retry after", v.RetryAfter.Format(time.RFC3339))
	}
	if v.StartedAt != nil {
		row("Started", v.StartedAt.Format(time.RFC3339))
	}
	if v.CompletedAt != nil {
		row("Completed", v.CompletedAt.Format(time.RFC3339))
	}
	if v.Error != "" {
		row("Error", color.RedString(v.Error))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(v.Result) > 0 {
		fmt.Fprintln(w, "\nResult:")
		_, err := writeStructured(w, formatYAML, resultWithoutDiff(v.Result))
		return err
	}
	return nil
}

// resultWithoutDiff hides the raw diff, which is usually far too long for a terminal.
func resultWithoutDiff(res map[string]any) map[string]any {
	out := make(map[string]any, len(res))
	for k, val := range res {
		if k == "diff_content" {
			if s, ok := val.(string); ok {
				val = fmt.Sprintf("<%d bytes>", len(s))
			}
		}
		out[k] = val
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
