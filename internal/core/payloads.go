package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Payload is the type-specific data of a job. It is a closed sum type: the only
// implementations are the four payload structs below and DecodePayload is the
// single place that maps a JobType to its payload.
type Payload interface {
	JobType() JobType
	Validate() error
}

// FetchDiffPayload asks for the diff between BaseSHA and HeadSHA.
type FetchDiffPayload struct {
	CommitID        string `json:"commit_id"`
	ProjectID       string `json:"project_id,omitempty"`
	RepositoryOwner string `json:"owner"`
	RepositoryName  string `json:"repo"`
	BaseSHA         string `json:"base_sha,omitempty"`
	HeadSHA         string `json:"head_sha"`
	InstallationID  int64  `json:"installation_id,omitempty"`
}

func (*FetchDiffPayload) JobType() JobType { return JobTypeFetchDiff }

func (p *FetchDiffPayload) Validate() error {
	switch {
	case p.CommitID == "":
		return errors.New("commit_id is required")
	case p.RepositoryOwner == "" || p.RepositoryName == "":
		return errors.New("repository owner and name are required")
	case p.HeadSHA == "":
		return errors.New("head_sha is required")
	}
	return nil
}

// GenerateSummaryPayload asks for an LLM summary of a commit. DiffContent is
// optional; when empty the diff is read from the upstream fetch_diff job.
type GenerateSummaryPayload struct {
	CommitID      string `json:"commit_id"`
	ProjectID     string `json:"project_id,omitempty"`
	DiffContent   string `json:"diff_content,omitempty"`
	CustomContext string `json:"custom_context,omitempty"`
}

func (*GenerateSummaryPayload) JobType() JobType { return JobTypeGenerateSummary }

func (p *GenerateSummaryPayload) Validate() error {
	if p.CommitID == "" {
		return errors.New("commit_id is required")
	}
	return nil
}

// EmailTemplateType selects the email layout.
type EmailTemplateType string

const (
	EmailTemplateSingleCommit  EmailTemplateType = "single_commit"
	EmailTemplateDigest        EmailTemplateType = "digest"
	EmailTemplateWeeklySummary EmailTemplateType = "weekly_summary"
)

// Valid reports whether t is a known template type.
func (t EmailTemplateType) Valid() bool {
	switch t {
	case EmailTemplateSingleCommit, EmailTemplateDigest, EmailTemplateWeeklySummary:
		return true
	default:
		return false
	}
}

// SendEmailPayload asks for a notification about one or more summarized commits.
type SendEmailPayload struct {
	CommitIDs    []string          `json:"commit_ids"`
	ProjectID    string            `json:"project_id"`
	Recipients   []string          `json:"recipients,omitempty"`
	TemplateType EmailTemplateType `json:"template_type"`
	Subject      string            `json:"subject,omitempty"`
}

func (*SendEmailPayload) JobType() JobType { return JobTypeSendEmail }

func (p *SendEmailPayload) Validate() error {
	if len(p.CommitIDs) == 0 {
		return errors.New("at least one commit id is required")
	}
	if p.ProjectID == "" {
		return errors.New("project_id is required")
	}
	if p.TemplateType != "" && !p.TemplateType.Valid() {
		return fmt.Errorf("unknown template type %q", p.TemplateType)
	}
	return nil
}

// WebhookProcessingPayload carries a raw webhook delivery for deferred ingestion.
type WebhookProcessingPayload struct {
	DeliveryID     string          `json:"delivery_id,omitempty"`
	EventType      string          `json:"event_type"`
	InstallationID int64           `json:"installation_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

func (*WebhookProcessingPayload) JobType() JobType { return JobTypeWebhookProcessing }

func (p *WebhookProcessingPayload) Validate() error {
	if p.EventType == "" {
		return errors.New("event_type is required")
	}
	if len(p.Payload) == 0 {
		return errors.New("webhook payload is required")
	}
	if !json.Valid(p.Payload) {
		return errors.New("webhook payload is not valid JSON")
	}
	return nil
}

// DecodePayload unmarshals raw JSON into the payload type registered for t.
func DecodePayload(t JobType, raw []byte) (Payload, error) {
	var p Payload
	switch t {
	case JobTypeFetchDiff:
		p = &FetchDiffPayload{}
	case JobTypeGenerateSummary:
		p = &GenerateSummaryPayload{}
	case JobTypeSendEmail:
		p = &SendEmailPayload{}
	case JobTypeWebhookProcessing:
		p = &WebhookProcessingPayload{}
	default:
		return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidJob, t)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload for %s", ErrInvalidJob, t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return p, nil
}
