package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sevigo/commit-digest/internal/core"
)

// Model failures that a retry cannot fix. All of them wrap core.ErrTerminal.
var (
	ErrTokenLimitExceeded  = fmt.Errorf("token limit exceeded: %w", core.ErrTerminal)
	ErrTruncatedGeneration = fmt.Errorf("generation truncated: %w", core.ErrTerminal)
	ErrEmptyResponse       = fmt.Errorf("empty response from model: %w", core.ErrTerminal)
)

// ErrEmptyDiff is returned for a blank diff before the model is called.
var ErrEmptyDiff = errors.New("diff is empty")

var providerTokenLimitFragments = []string{
	"token limit",
	"maximum context length",
	"context length exceeded",
	"input is too long",
	"exceeds the maximum number of tokens",
}

// classifyProviderError maps raw provider errors that describe an oversized
// prompt onto ErrTokenLimitExceeded. Other errors are returned wrapped as is.
func classifyProviderError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, fragment := range providerTokenLimitFragments {
		if strings.Contains(msg, fragment) {
			return fmt.Errorf("%w: %v", ErrTokenLimitExceeded, err)
		}
	}
	return fmt.Errorf("failed to generate summary: %w", err)
}
