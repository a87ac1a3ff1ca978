package core

import "time"

// ChangeType is the classification the summarizer assigns to a commit.
type ChangeType string

const (
	ChangeTypeFeature ChangeType = "feature"
	ChangeTypeBugfix  ChangeType = "bugfix"
)

// Project links a GitHub repository to a billing user and notification settings.
type Project struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	RepositoryFullName string    `json:"repository_full_name"`
	UserID             *string   `json:"user_id,omitempty"`
	InstallationID     *int64    `json:"installation_id,omitempty"`
	EmailRecipients    []string  `json:"email_recipients,omitempty"`
	CustomContext      string    `json:"custom_context,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Commit is a pushed commit tracked through the digest pipeline.
type Commit struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	SHA          string     `json:"sha"`
	BaseSHA      string     `json:"base_sha,omitempty"`
	Message      string     `json:"message"`
	AuthorName   string     `json:"author_name"`
	AuthorEmail  string     `json:"author_email,omitempty"`
	AuthorLogin  string     `json:"author_login,omitempty"`
	Branch       string     `json:"branch,omitempty"`
	URL          string     `json:"url,omitempty"`
	CommittedAt  time.Time  `json:"committed_at"`
	PRNumber     *int       `json:"pr_number,omitempty"`
	PRTitle      *string    `json:"pr_title,omitempty"`
	PRURL        *string    `json:"pr_url,omitempty"`
	Summary      *string    `json:"summary,omitempty"`
	ChangeType   *string    `json:"change_type,omitempty"`
	Confidence   *float64   `json:"confidence,omitempty"`
	FilesChanged int        `json:"files_changed"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	EmailSent    bool       `json:"email_sent"`
	SummarizedAt *time.Time `json:"summarized_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasSummary reports whether a non-empty summary has been saved.
func (c *Commit) HasSummary() bool {
	return c != nil && c.Summary != nil && *c.Summary != ""
}

// ShortSHA returns the first seven characters of the commit sha.
func (c *Commit) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// CommitUpdate is a partial update of a commit. Nil fields are left untouched.
type CommitUpdate struct {
	Summary      *string
	ChangeType   *string
	Confidence   *float64
	SummarizedAt *time.Time
	FilesChanged *int
	Additions    *int
	Deletions    *int
	PRNumber     *int
	PRTitle      *string
	PRURL        *string
}

// EmailSendStatus tracks a single dispatch attempt in the email ledger.
type EmailSendStatus string

const (
	EmailSendPending EmailSendStatus = "pending"
	EmailSendSent    EmailSendStatus = "sent"
	EmailSendFailed  EmailSendStatus = "failed"
)

// EmailSend is one recorded dispatch attempt, unique per (JobID, Attempt).
type EmailSend struct {
	ID           string
	JobID        string
	Attempt      int
	ProjectID    string
	CommitIDs    []string
	Recipients   []string
	Subject      string
	TemplateType EmailTemplateType
	Status       EmailSendStatus
	Error        *string
	CreatedAt    time.Time
	SentAt       *time.Time
}

// EmailMessage is a fully rendered email ready for delivery.
type EmailMessage struct {
	To      []string
	From    string
	Subject string
	HTML    string
}

// RepoRef identifies a repository and the token used to access it.
type RepoRef struct {
	Owner string
	Name  string
	Token string
}

// FullName returns "owner/name".
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// DiffRequest asks for the changes between two refs of a repository.
type DiffRequest struct {
	Repo RepoRef
	Base string
	Head string
}

// DiffFile is one changed file of a comparison.
type DiffFile struct {
	Filename         string
	PreviousFilename string
	Status           string
	Additions        int
	Deletions        int
	Changes          int
	Patch            string
}

// DiffStats aggregates the line counts of a comparison.
type DiffStats struct {
	FilesChanged int
	Additions    int
	Deletions    int
}

// DiffResult is the structured comparison between two commits.
type DiffResult struct {
	Files    []DiffFile
	Stats    DiffStats
	Commits  int
	AheadBy  int
	BehindBy int
	Status   string
}

// CommitInfo is the subset of commit metadata needed for base fallback.
type CommitInfo struct {
	SHA     string
	Parents []string
	Message string
	Author  string
}

// PullRequestInfo describes a pull request that contains a commit.
type PullRequestInfo struct {
	Number     int
	Title      string
	URL        string
	HeadBranch string
	State      string
}

// SummaryOptions carries the context passed along with a diff to the summarizer.
type SummaryOptions struct {
	CustomContext string
	Metadata      SummaryMetadata
}

// SummaryMetadata describes the commit being summarized.
type SummaryMetadata struct {
	Repository    string
	CommitSHA     string
	CommitMessage string
	Author        string
	Branch        string
	PRNumber      int
	PRTitle       string
	IssueRefs     []string
}

// Summary is the summarizer's output for one diff.
type Summary struct {
	Summary        string
	ChangeType     ChangeType
	Confidence     float64
	TokensUsed     int
	ProcessingTime time.Duration
	TemplateUsed   string
}
