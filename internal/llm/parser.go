package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sevigo/commit-digest/internal/core"
)

// defaultConfidence is used when the model omits or garbles its confidence.
const defaultConfidence = 0.5

var confidenceRegex = regexp.MustCompile(`\d+(?:\.\d+)?`)

type parsedSummary struct {
	Summary    string
	ChangeType core.ChangeType
	Confidence float64
}

// parseSummaryResponse extracts the sections requested by the commit summary
// prompts. It tolerates a wrapping code fence, heading case and level, and a
// missing confidence. A response that stops before the change type section is
// reported as truncated.
func parseSummaryResponse(text string) (*parsedSummary, error) {
	text = stripMarkdownFence(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	sections := map[string]*strings.Builder{}
	var current string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "#") {
			heading := strings.ToUpper(strings.TrimSpace(strings.TrimLeft(line, "#")))
			switch {
			case strings.HasPrefix(heading, "SUMMARY"):
				current = "summary"
			case strings.HasPrefix(heading, "CHANGE TYPE"), strings.HasPrefix(heading, "CHANGE_TYPE"):
				current = "change_type"
			case strings.HasPrefix(heading, "CONFIDENCE"):
				current = "confidence"
			default:
				current = ""
			}
			if current != "" {
				sections[current] = &strings.Builder{}
			}
			continue
		}
		if current == "" || line == "" {
			continue
		}
		b := sections[current]
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(line)
	}

	out := &parsedSummary{Confidence: defaultConfidence}
	if b, ok := sections["summary"]; ok {
		out.Summary = strings.TrimSpace(b.String())
	}
	if out.Summary == "" {
		if len(sections) == 0 {
			// Free text without headings cannot be classified.
			return nil, fmt.Errorf("%w: response has no summary section", ErrTruncatedGeneration)
		}
		return nil, ErrEmptyResponse
	}

	b, ok := sections["change_type"]
	if !ok {
		return nil, fmt.Errorf("%w: response ends before the change type", ErrTruncatedGeneration)
	}
	out.ChangeType = parseChangeType(b.String())

	if b, ok := sections["confidence"]; ok {
		if m := confidenceRegex.FindString(b.String()); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				if v > 1 && v <= 100 {
					v /= 100
				}
				if v >= 0 && v <= 1 {
					out.Confidence = v
				}
			}
		}
	}
	return out, nil
}

// parseChangeType maps the model's label onto the two supported types.
// Anything that does not read as a fix counts as a feature.
func parseChangeType(label string) core.ChangeType {
	label = strings.ToLower(strings.Trim(strings.TrimSpace(label), "`*_.<>"))
	switch {
	case strings.Contains(label, "bug"), strings.HasPrefix(label, "fix"):
		return core.ChangeTypeBugfix
	default:
		return core.ChangeTypeFeature
	}
}

// stripMarkdownFence removes a ```markdown ... ``` wrapping that some models add
// around their output.
func stripMarkdownFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "```markdown") || strings.HasPrefix(trimmed, "```md") {
		idx := strings.Index(trimmed, "\n")
		if idx < 0 {
			return s
		}
		inner := trimmed[idx+1:]
		if lastFence := strings.LastIndex(inner, "```"); lastFence >= 0 {
			inner = inner[:lastFence]
		}
		return strings.TrimSpace(inner)
	}
	return s
}
