package jobs

import (
	"errors"
	"strings"

	"github.com/sevigo/commit-digest/internal/core"
)

// nonRetryableFragments are failure messages that no retry can fix. They catch
// errors from code that does not wrap core.ErrTerminal.
var nonRetryableFragments = []string{
	"token limit exceeded",
	"maximum context length",
	"context length exceeded",
	"generation truncated",
	"truncated generation",
	"response was truncated",
	"empty response",
	"empty llm response",
}

// isNonRetryable decides whether a failed execution skips the retry ladder.
// An explicit terminal flag wins, then error wrapping, then the message.
func isNonRetryable(res *core.JobResult, err error) bool {
	if res != nil && res.Terminal {
		return true
	}
	if err != nil && errors.Is(err, core.ErrTerminal) {
		return true
	}
	return isNonRetryableMessage(failureMessage(res, err))
}

func isNonRetryableMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, f := range nonRetryableFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}

// failureMessage picks the most specific message of a failed execution.
func failureMessage(res *core.JobResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if res != nil && res.Error != "" {
		return res.Error
	}
	return "job failed without an error message"
}
