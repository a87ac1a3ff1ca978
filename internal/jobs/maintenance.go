package jobs

import (
	"context"

	"github.com/sevigo/commit-digest/internal/core"
)

// MaintenanceReport summarizes one maintenance pass.
type MaintenanceReport struct {
	CleanedCompleted int64    `json:"cleaned_completed"`
	ExpiredCancelled int64    `json:"expired_cancelled"`
	StaleFailed      int      `json:"stale_failed"`
	BlockedCancelled int64    `json:"blocked_cancelled"`
	DroppedActive    []string `json:"dropped_active,omitempty"`
	Untracked        []string `json:"untracked_running,omitempty"`
}

// RunMaintenance purges old jobs, fails stale running jobs, cancels jobs whose
// dependencies can no longer complete and reconciles the active set with the
// store. Every step runs even when an earlier one fails. Callers of the
// exported method may run it while RunOnce is executing a batch.
func (p *Processor) RunMaintenance(ctx context.Context) MaintenanceReport {
	opts := p.options()
	var rep MaintenanceReport
	var err error

	if rep.CleanedCompleted, err = p.store.CleanupCompletedJobs(ctx, opts.RetentionDays); err != nil {
		p.logger.Error("failed to clean up completed jobs", "error", err)
	}
	if rep.ExpiredCancelled, err = p.store.CleanupExpiredJobs(ctx); err != nil {
		p.logger.Error("failed to clean up expired jobs", "error", err)
	}

	stale, err := p.store.GetStaleRunningJobs(ctx, opts.staleTimeout())
	if err != nil {
		p.logger.Error("failed to list stale jobs", "error", err)
	}
	for _, job := range stale {
		details := map[string]any{"reason": "stale_running_job"}
		if p.fail(ctx, job, "job exceeded the stale timeout while running", details, false, opts) == nil {
			rep.StaleFailed++
		}
	}

	if rep.BlockedCancelled, err = p.store.CancelBlockedJobs(ctx); err != nil {
		p.logger.Error("failed to cancel blocked jobs", "error", err)
	}

	p.reconcileActive(ctx, &rep)
	p.updateQueueGauges(ctx)

	p.mu.Lock()
	p.lastMaintenanceAt = p.now()
	p.mu.Unlock()

	p.logger.Info("job maintenance finished",
		"cleaned_completed", rep.CleanedCompleted,
		"expired_cancelled", rep.ExpiredCancelled,
		"stale_failed", rep.StaleFailed,
		"blocked_cancelled", rep.BlockedCancelled,
		"dropped_active", len(rep.DroppedActive),
	)
	return rep
}

// reconcileActive drops local entries whose job is no longer running in the
// store and reports running jobs that no local entry tracks.
func (p *Processor) reconcileActive(ctx context.Context, rep *MaintenanceReport) {
	running, err := p.store.GetStaleRunningJobs(ctx, 0)
	if err != nil {
		p.logger.Error("failed to list running jobs", "error", err)
		return
	}
	ids := make(map[string]struct{}, len(running))
	for _, job := range running {
		ids[job.ID] = struct{}{}
		if !p.active.has(job.ID) {
			rep.Untracked = append(rep.Untracked, job.ID)
			p.logger.Warn("running job is not tracked by this processor", "job_id", job.ID, "job_type", job.Type)
		}
	}
	rep.DroppedActive = p.active.dropUnless(ids)
	for _, id := range rep.DroppedActive {
		p.logger.Warn("dropped active job that is no longer running", "job_id", id)
	}
}

func (p *Processor) updateQueueGauges(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	stats, err := p.store.GetQueueStats(ctx)
	if err != nil {
		p.logger.Warn("failed to read queue stats", "error", err)
		return
	}
	for _, st := range core.AllJobStatuses {
		p.metrics.QueueDepth.WithLabelValues(string(st)).Set(float64(stats.Counts[st]))
	}
}
