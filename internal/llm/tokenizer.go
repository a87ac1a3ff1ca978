package llm

import (
	"context"

	"github.com/sevigo/goframe/llms"
)

// charsPerToken is the fallback estimate when the model cannot count tokens.
const charsPerToken = 3

// countTokens uses the model's own tokenizer when it has one and falls back
// to a character based estimate.
func countTokens(ctx context.Context, model llms.Model, text string) int {
	if t, ok := model.(llms.Tokenizer); ok {
		if n, err := t.CountTokens(ctx, text); err == nil {
			return n
		}
	}
	return estimateTokens(text)
}

func estimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}
