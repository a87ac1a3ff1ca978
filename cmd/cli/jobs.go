package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/commit-digest/internal/jobs"
	"github.com/sevigo/commit-digest/internal/server/handler"
	"github.com/sevigo/commit-digest/internal/storage"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and administer queued jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists jobs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		get := func(name string) string {
			v, _ := flags.GetString(name)
			return v
		}
		filter, err := handler.ParseJobFilter(func(key string) string {
			switch key {
			case "project_id":
				return get("project")
			case "commit_id":
				return get("commit")
			default:
				return get(key)
			}
		})
		if err != nil {
			return err
		}

		env, cleanup, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		list, err := env.jobs.GetJobsByFilter(commandContext(cmd), filter)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		views := make([]jobs.JobView, 0, len(list))
		for _, j := range list {
			views = append(views, jobs.NewJobView(j, nil))
		}

		if ok, err := writeStructured(env.out, env.format, views); ok {
			return err
		}
		if len(views) == 0 {
			fmt.Fprintln(env.out, "No jobs match the filter.")
			return nil
		}
		return writeJobsTable(env.out, views, time.Now())
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Shows one job with its dependencies and result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, cleanup, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		view, err := loadJobView(cmd, env, args[0])
		if err != nil {
			return err
		}
		if ok, err := writeStructured(env.out, env.format, view); ok {
			return err
		}
		return writeJobDetail(env.out, view)
	},
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Makes a pending, failed or cancelled job ready to run now",
	Long: `Retry resets the attempt budget of failed and cancelled jobs and schedules
them for immediate execution. Pending jobs keep their attempts but lose any backoff.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, cleanup, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := env.jobs.ScheduleRetry(commandContext(cmd), args[0], time.Now()); err != nil {
			return adminError("retry", args[0], err)
		}
		fmt.Fprintf(env.out, "%s job %s scheduled for retry\n", color.GreenString("✓"), args[0])
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancels a pending or running job",
	Long: `Cancel marks the job cancelled. A handler that is already running is not
interrupted; its completion is discarded. Jobs that depend on a cancelled job are
cancelled by the next maintenance pass.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		env, cleanup, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := env.jobs.CancelJob(commandContext(cmd), args[0], reason); err != nil {
			return adminError("cancel", args[0], err)
		}
		fmt.Fprintf(env.out, "%s job %s cancelled\n", color.YellowString("✓"), args[0])
		return nil
	},
}

func loadJobView(cmd *cobra.Command, env *cliEnv, id string) (jobs.JobView, error) {
	ctx := commandContext(cmd)
	job, err := env.jobs.GetJob(ctx, id)
	if err != nil {
		return jobs.JobView{}, adminError("show", id, err)
	}
	deps, err := env.jobs.GetJobDependencies(ctx, id)
	if err != nil {
		return jobs.JobView{}, fmt.Errorf("failed to load dependencies of job %s: %w", id, err)
	}
	return jobs.NewJobView(job, deps), nil
}

func adminError(op, id string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("job %s not found", id)
	case errors.Is(err, storage.ErrInvalidTransition):
		return fmt.Errorf("cannot %s job %s: %w", op, id, err)
	default:
		return fmt.Errorf("failed to %s job %s: %w", op, id, err)
	}
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	jobsListCmd.Flags().String("status", "", "Comma-separated statuses (pending,running,completed,failed,cancelled)")
	jobsListCmd.Flags().String("type", "", "Comma-separated job types")
	jobsListCmd.Flags().String("project", "", "Project id")
	jobsListCmd.Flags().String("commit", "", "Commit id")
	jobsListCmd.Flags().String("limit", "50", "Maximum number of jobs")
	jobsListCmd.Flags().String("offset", "", "Number of jobs to skip")

	jobsCancelCmd.Flags().String("reason", "cancelled via CLI", "Reason stored on the job")

	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsRetryCmd, jobsCancelCmd)
	rootCmd.AddCommand(jobsCmd)
}
