package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/commit-digest/internal/core"
)

const sampleDiff = "diff --git a/auth/login.go b/auth/login.go\n--- a/auth/login.go\n+++ b/auth/login.go\n@@ -1 +1 @@\n-old\n+new\n"

type countingLimiter struct {
	calls int
	err   error
}

func (l *countingLimiter) Wait(context.Context) error {
	l.calls++
	return l.err
}

func newTestSummarizer(t *testing.T, gen Generator, opts ...Option) *Summarizer {
	t.Helper()
	pm, err := NewPromptManager()
	require.NoError(t, err)
	return NewSummarizer(gen, pm, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func summaryOptions() core.SummaryOptions {
	return core.SummaryOptions{
		CustomContext: "Payments team",
		Metadata: core.SummaryMetadata{
			Repository:    "acme/widgets",
			CommitSHA:     "abc1234",
			CommitMessage: "Fix login redirect (ABC-123, #42)",
			Author:        "dana",
			Branch:        "main",
			PRNumber:      42,
			PRTitle:       "Fix login",
			IssueRefs:     []string{"ABC-123", "#42"},
		},
	}
}

func TestSummarizer_ProcessDiff(t *testing.T) {
	var gotPrompt string
	gen := func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "# SUMMARY\nFixes the login redirect loop.\n# CHANGE TYPE\nbugfix\n# CONFIDENCE\n0.8", nil
	}
	limiter := &countingLimiter{}
	s := newTestSummarizer(t, gen, WithLimiter(limiter))

	got, err := s.ProcessDiff(context.Background(), sampleDiff, summaryOptions())
	require.NoError(t, err)
	assert.Equal(t, "Fixes the login redirect loop.", got.Summary)
	assert.Equal(t, core.ChangeTypeBugfix, got.ChangeType)
	assert.InDelta(t, 0.8, got.Confidence, 0.0001)
	assert.Equal(t, "commit_summary_default", got.TemplateUsed)
	assert.Positive(t, got.TokensUsed)
	assert.Equal(t, 1, limiter.calls)

	for _, want := range []string{"acme/widgets", "Pull request: #42 Fix login", "ABC-123, #42", "Payments team", "+new"} {
		assert.Contains(t, gotPrompt, want)
	}
	assert.NotContains(t, gotPrompt, "(truncated)")
}

func TestSummarizer_ProviderVariantAndTruncation(t *testing.T) {
	var gotPrompt string
	gen := func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "# SUMMARY\nAdds exports.\n# CHANGE TYPE\nfeature", nil
	}
	s := newTestSummarizer(t, gen, WithProvider("ollama"), WithMaxDiffChars(40))

	got, err := s.ProcessDiff(context.Background(), sampleDiff+strings.Repeat("+line\n", 50), summaryOptions())
	require.NoError(t, err)
	assert.Equal(t, "commit_summary_ollama", got.TemplateUsed)
	assert.Contains(t, gotPrompt, "diff truncated")
	assert.NotContains(t, gotPrompt, "+line")
}

func TestSummarizer_TerminalFailures(t *testing.T) {
	tests := []struct {
		name    string
		diff    string
		gen     Generator
		opts    []Option
		wantErr error
	}{
		{
			name:    "prompt over token budget",
			diff:    sampleDiff,
			gen:     func(context.Context, string) (string, error) { return "", errors.New("must not be called") },
			opts:    []Option{WithMaxPromptTokens(10)},
			wantErr: ErrTokenLimitExceeded,
		},
		{
			name:    "provider reports context length",
			diff:    sampleDiff,
			gen:     func(context.Context, string) (string, error) { return "", errors.New("This model's maximum context length is 8192") },
			wantErr: ErrTokenLimitExceeded,
		},
		{
			name:    "empty completion",
			diff:    sampleDiff,
			gen:     func(context.Context, string) (string, error) { return "", nil },
			wantErr: ErrEmptyResponse,
		},
		{
			name:    "truncated completion",
			diff:    sampleDiff,
			gen:     func(context.Context, string) (string, error) { return "# SUMMARY\nThis change", nil },
			wantErr: ErrTruncatedGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSummarizer(t, tt.gen, tt.opts...)
			_, err := s.ProcessDiff(context.Background(), tt.diff, summaryOptions())
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrTerminal)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSummarizer_RetryableFailures(t *testing.T) {
	t.Run("network error", func(t *testing.T) {
		s := newTestSummarizer(t, func(context.Context, string) (string, error) {
			return "", errors.New("read tcp: connection reset by peer")
		})
		_, err := s.ProcessDiff(context.Background(), sampleDiff, summaryOptions())
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrTerminal)
	})

	t.Run("request timeout", func(t *testing.T) {
		s := newTestSummarizer(t, func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}, WithRequestTimeout(20*time.Millisecond))
		_, err := s.ProcessDiff(context.Background(), sampleDiff, summaryOptions())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, core.ErrTerminal)
	})

	t.Run("empty diff", func(t *testing.T) {
		s := newTestSummarizer(t, func(context.Context, string) (string, error) {
			return "", errors.New("must not be called")
		})
		_, err := s.ProcessDiff(context.Background(), " \n", summaryOptions())
		assert.ErrorIs(t, err, ErrEmptyDiff)
		assert.NotErrorIs(t, err, core.ErrTerminal)
	})

	t.Run("limiter error", func(t *testing.T) {
		called := false
		s := newTestSummarizer(t, func(context.Context, string) (string, error) {
			called = true
			return "", nil
		}, WithLimiter(&countingLimiter{err: context.Canceled}))
		_, err := s.ProcessDiff(context.Background(), sampleDiff, summaryOptions())
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}

func TestPromptManager_FallsBackToDefault(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	tmpl, err := pm.Get(CommitSummaryPrompt, "gemini")
	require.NoError(t, err)
	assert.Equal(t, "commit_summary_default", tmpl.Name())

	_, err = pm.Get("unknown", DefaultProvider)
	assert.Error(t, err)
}
