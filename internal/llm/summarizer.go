package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sevigo/goframe/llms"

	"github.com/sevigo/commit-digest/internal/core"
)

const (
	defaultMaxDiffChars    = 120000
	defaultMaxPromptTokens = 60000
	defaultRequestTimeout  = 2 * time.Minute
	truncationMarker       = "\n... diff truncated ...\n"
)

// Generator produces a completion for a single prompt.
type Generator func(ctx context.Context, prompt string) (string, error)

// ModelGenerator adapts a goframe model to a Generator.
func ModelGenerator(model llms.Model) Generator {
	return func(ctx context.Context, prompt string) (string, error) {
		return model.Call(ctx, prompt)
	}
}

// Limiter throttles model calls. Wait blocks until a call may proceed.
type Limiter interface {
	Wait(ctx context.Context) error
}

type Option func(*Summarizer)

// WithModel sets the model used for token counting.
func WithModel(model llms.Model) Option {
	return func(s *Summarizer) { s.model = model }
}

// WithProvider selects the prompt variant.
func WithProvider(p ModelProvider) Option {
	return func(s *Summarizer) {
		if p != "" {
			s.provider = p
		}
	}
}

func WithLimiter(l Limiter) Option {
	return func(s *Summarizer) { s.limiter = l }
}

func WithMaxDiffChars(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.maxDiffChars = n
		}
	}
}

func WithMaxPromptTokens(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.maxPromptTokens = n
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Summarizer) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// Summarizer renders the commit summary prompt, calls the model and parses
// the answer into a core.Summary.
type Summarizer struct {
	generate        Generator
	model           llms.Model
	prompts         *PromptManager
	logger          *slog.Logger
	limiter         Limiter
	provider        ModelProvider
	maxDiffChars    int
	maxPromptTokens int
	requestTimeout  time.Duration
}

var _ core.Summarizer = (*Summarizer)(nil)

func NewSummarizer(generate Generator, prompts *PromptManager, logger *slog.Logger, opts ...Option) *Summarizer {
	s := &Summarizer{
		generate:        generate,
		prompts:         prompts,
		logger:          logger,
		provider:        DefaultProvider,
		maxDiffChars:    defaultMaxDiffChars,
		maxPromptTokens: defaultMaxPromptTokens,
		requestTimeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type promptData struct {
	Repository    string
	CommitSHA     string
	CommitMessage string
	Author        string
	Branch        string
	PRNumber      int
	PRTitle       string
	IssueRefs     []string
	CustomContext string
	Diff          string
	Truncated     bool
}

// ProcessDiff summarizes one commit diff. Oversized prompts, truncated output
// and empty output are reported with errors wrapping core.ErrTerminal.
func (s *Summarizer) ProcessDiff(ctx context.Context, diff string, opts core.SummaryOptions) (*core.Summary, error) {
	if strings.TrimSpace(diff) == "" {
		return nil, ErrEmptyDiff
	}

	clipped, truncated := truncateDiff(diff, s.maxDiffChars)
	md := opts.Metadata
	data := promptData{
		Repository:    md.Repository,
		CommitSHA:     md.CommitSHA,
		CommitMessage: md.CommitMessage,
		Author:        md.Author,
		Branch:        md.Branch,
		PRNumber:      md.PRNumber,
		PRTitle:       md.PRTitle,
		IssueRefs:     md.IssueRefs,
		CustomContext: opts.CustomContext,
		Diff:          clipped,
		Truncated:     truncated,
	}
	prompt, templateUsed, err := s.prompts.Render(CommitSummaryPrompt, s.provider, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render summary prompt: %w", err)
	}

	promptTokens := countTokens(ctx, s.model, prompt)
	if promptTokens > s.maxPromptTokens {
		return nil, fmt.Errorf("%w: prompt needs %d tokens, limit is %d", ErrTokenLimitExceeded, promptTokens, s.maxPromptTokens)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to acquire model rate limit: %w", err)
		}
	}

	start := time.Now()
	resp, err := s.generateWithTimeout(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("failed to generate summary: %w", err)
		}
		return nil, classifyProviderError(err)
	}

	parsed, err := parseSummaryResponse(resp)
	if err != nil {
		s.logger.Warn("unusable summary response", "commit", md.CommitSHA, "template", templateUsed, "error", err)
		return nil, err
	}

	s.logger.Info("commit summarized",
		"commit", md.CommitSHA,
		"change_type", parsed.ChangeType,
		"diff_truncated", truncated,
		"duration", elapsed,
	)
	return &core.Summary{
		Summary:        parsed.Summary,
		ChangeType:     parsed.ChangeType,
		Confidence:     parsed.Confidence,
		TokensUsed:     promptTokens + countTokens(ctx, s.model, resp),
		ProcessingTime: elapsed,
		TemplateUsed:   templateUsed,
	}, nil
}

// generateWithTimeout wraps generation with a hard timeout.
func (s *Summarizer) generateWithTimeout(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	type result struct {
		resp string
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		resp, err := s.generate(ctx, prompt)
		resultCh <- result{resp, err}
	}()

	select {
	case res := <-resultCh:
		return res.resp, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// truncateDiff cuts diff to at most maxChars, at a line boundary when one exists.
func truncateDiff(diff string, maxChars int) (string, bool) {
	if maxChars <= 0 || len(diff) <= maxChars {
		return diff, false
	}
	cut := diff[:maxChars]
	if idx := strings.LastIndex(cut, "\n"); idx > 0 {
		cut = cut[:idx+1]
	}
	return cut + truncationMarker, true
}
