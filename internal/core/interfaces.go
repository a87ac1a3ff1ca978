package core

import (
	"context"
	"log/slog"
)

//go:generate mockgen -destination=../../mocks/mock_core.go -package=mocks github.com/sevigo/commit-digest/internal/core DiffProvider,TokenProvider,Summarizer,BillingLedger,CommitStore,ProjectStore,EmailSender,EmailTracker

// Logger is the structured logging surface the core depends on. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var _ Logger = (*slog.Logger)(nil)

// TokenProvider hands out short-lived installation tokens.
type TokenProvider interface {
	GetInstallationToken(ctx context.Context, installationID int64) (string, error)
}

// DiffProvider reads comparisons and commit ancestry from the code host.
// Missing refs are reported with an error wrapping ErrRefNotFound.
type DiffProvider interface {
	GetDiff(ctx context.Context, req DiffRequest) (*DiffResult, error)
	GetDiffRaw(ctx context.Context, req DiffRequest) (string, error)
	GetCommit(ctx context.Context, repo RepoRef, sha string) (*CommitInfo, error)
	ListPullRequestsForCommit(ctx context.Context, repo RepoRef, sha string) ([]PullRequestInfo, error)
}

// Summarizer turns a unified diff into a short natural-language summary.
type Summarizer interface {
	ProcessDiff(ctx context.Context, diff string, opts SummaryOptions) (*Summary, error)
}

// BillingLedger tracks per-user credits.
type BillingLedger interface {
	HasCredits(ctx context.Context, userID string, amount int) (bool, error)
	DeductCredits(ctx context.Context, userID string, amount int, description string) error
	EstimateSummaryCredits(diff string) int
}

// CommitStore is the data access for commits. Missing rows are reported with an
// error wrapping ErrNotFound.
type CommitStore interface {
	CreateCommit(ctx context.Context, commit *Commit) error
	GetCommit(ctx context.Context, id string) (*Commit, error)
	GetCommitBySHA(ctx context.Context, projectID, sha string) (*Commit, error)
	UpdateCommit(ctx context.Context, id string, update CommitUpdate) error
	MarkCommitAsEmailSent(ctx context.Context, id string) error
}

// ProjectStore is the data access for projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	GetProjectByRepository(ctx context.Context, fullName string) (*Project, error)
}

// EmailSender delivers rendered emails.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// EmailTracker is the ledger of email dispatch attempts.
type EmailTracker interface {
	RecordEmailSend(ctx context.Context, send *EmailSend) (string, error)
	MarkEmailSendStatus(ctx context.Context, id string, status EmailSendStatus, errMsg string) error
	ListEmailSendsForJob(ctx context.Context, jobID string) ([]EmailSend, error)
}
