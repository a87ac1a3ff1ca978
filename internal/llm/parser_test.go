package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/commit-digest/internal/core"
)

func TestParseSummaryResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *parsedSummary
		wantErr error
	}{
		{
			name:  "all sections",
			input: "# SUMMARY\nAdds CSV export to reports.\nUsers can download filtered rows.\n\n# CHANGE TYPE\nfeature\n\n# CONFIDENCE\n0.85\n",
			want: &parsedSummary{
				Summary:    "Adds CSV export to reports. Users can download filtered rows.",
				ChangeType: core.ChangeTypeFeature,
				Confidence: 0.85,
			},
		},
		{
			name:  "fenced output with lower-case headings",
			input: "```markdown\n## Summary\nFixes a nil map write in the cache.\n## Change type\n**bugfix**\n## Confidence\n90%\n```",
			want: &parsedSummary{
				Summary:    "Fixes a nil map write in the cache.",
				ChangeType: core.ChangeTypeBugfix,
				Confidence: 0.9,
			},
		},
		{
			name:  "missing confidence uses default",
			input: "# SUMMARY\nRenames the config loader.\n# CHANGE TYPE\nrefactor",
			want: &parsedSummary{
				Summary:    "Renames the config loader.",
				ChangeType: core.ChangeTypeFeature,
				Confidence: defaultConfidence,
			},
		},
		{
			name:    "blank output",
			input:   "  \n",
			wantErr: ErrEmptyResponse,
		},
		{
			name:    "heading without summary text",
			input:   "# SUMMARY\n\n# CHANGE TYPE\nfeature",
			wantErr: ErrEmptyResponse,
		},
		{
			name:    "stops before change type",
			input:   "# SUMMARY\nThis commit updates the",
			wantErr: ErrTruncatedGeneration,
		},
		{
			name:    "free text without sections",
			input:   "I think this change is good.",
			wantErr: ErrTruncatedGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSummaryResponse(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, core.ErrTerminal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseChangeType(t *testing.T) {
	assert.Equal(t, core.ChangeTypeBugfix, parseChangeType("Bugfix"))
	assert.Equal(t, core.ChangeTypeBugfix, parseChangeType("`fix`"))
	assert.Equal(t, core.ChangeTypeFeature, parseChangeType("feature"))
	assert.Equal(t, core.ChangeTypeFeature, parseChangeType("Feature."))
}
