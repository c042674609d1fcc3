package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindgrove/triage/llm"
	"github.com/mindgrove/triage/llm/testutil"
	"github.com/mindgrove/triage/task"
)

// wednesday matches the spec scenario: "Email parents by Friday" noted on a
// Wednesday makes Friday fall inside the 48-hour urgency window.
var wednesday = time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

func TestExtract_TwoActionItems(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{
			Content: `[
  {"title":"Email parents about excursion","urgent":true,"important":true,"area":"work","due_date":"2026-08-28T17:00:00Z","reasoning":"Friday deadline within 48 hours"},
  {"title":"Prep lesson on photosynthesis","urgent":false,"important":true,"area":"work","estimated_minutes":30}
]`,
			Model: "test-model",
		}},
	}

	extractor := NewExtractor(mock)
	drafts, err := extractor.Extract(context.Background(),
		"Email parents by Friday about excursion. Prep lesson on photosynthesis, 30 mins.", wednesday)

	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.True(t, drafts[0].Urgent)
	assert.Equal(t, task.AreaWork, drafts[0].Area)
	require.NotNil(t, drafts[0].DueDate)

	assert.False(t, drafts[1].Urgent)
	assert.Equal(t, 30, drafts[1].EstimatedMinutes)
	assert.Equal(t, task.AreaWork, drafts[1].Area)
	assert.Nil(t, drafts[1].DueDate)
}

func TestExtract_EmptyNoteSkipsLLM(t *testing.T) {
	mock := &testutil.MockClient{}

	extractor := NewExtractor(mock)
	drafts, err := extractor.Extract(context.Background(), "   \n", wednesday)

	require.NoError(t, err)
	assert.Empty(t, drafts)
	assert.Equal(t, 0, mock.CallCount())
}

func TestExtract_PureCommentaryYieldsEmptyList(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{Content: "No action items here.\n\n[]", Model: "test-model"}},
	}

	extractor := NewExtractor(mock)
	drafts, err := extractor.Extract(context.Background(), "Lovely weather today.", wednesday)

	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestExtract_UnparsableResponseIsExtractionError(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{Content: "I could not process that note.", Model: "test-model"}},
	}

	extractor := NewExtractor(mock)
	_, err := extractor.Extract(context.Background(), "Call the dentist tomorrow.", wednesday)

	require.Error(t, err)
	var extractionErr *ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}

func TestExtract_LLMFailureIsExtractionError(t *testing.T) {
	mock := &testutil.MockClient{Err: errors.New("connection refused")}

	extractor := NewExtractor(mock)
	_, err := extractor.Extract(context.Background(), "Call the dentist tomorrow.", wednesday)

	require.Error(t, err)
	var extractionErr *ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}

func TestExtract_PromptCarriesCurrentDate(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{Content: "[]", Model: "test-model"}},
	}

	extractor := NewExtractor(mock)
	_, err := extractor.Extract(context.Background(), "Finish the report by Friday.", wednesday)
	require.NoError(t, err)

	req, ok := mock.LastRequest()
	require.True(t, ok)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[1].Content, "2026-08-26")
	assert.Contains(t, req.Messages[1].Content, "Wednesday")
}

func TestParseExtractionResponse_MarkdownFence(t *testing.T) {
	content := "```json\n[{\"title\":\"Book dentist\",\"area\":\"health\"}]\n```"

	drafts, err := parseExtractionResponse(content, wednesday)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, task.AreaHealth, drafts[0].Area)
}

func TestParseExtractionResponse_UnknownAreaNormalized(t *testing.T) {
	content := `[{"title":"Sort taxes","area":"finance"}]`

	drafts, err := parseExtractionResponse(content, wednesday)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, task.AreaPersonal, drafts[0].Area)
}

func TestParseExtractionResponse_MissingTitleFails(t *testing.T) {
	content := `[{"title":"","area":"work"}]`

	_, err := parseExtractionResponse(content, wednesday)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no title")
}

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantNil bool
	}{
		{"rfc3339", "2026-08-28T17:00:00Z", false},
		{"bare date", "2026-08-28", false},
		{"empty resolves to no due date", "", true},
		{"null string", "null", true},
		{"unanchored phrase", "next week", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDueDate(tt.input, wednesday)
			if tt.wantNil {
				assert.Nil(t, got)
			} else {
				assert.NotNil(t, got)
			}
		})
	}
}

func TestTruncateNote(t *testing.T) {
	short := "small note"
	assert.Equal(t, short, truncateNote(short, 100))

	long := "first paragraph\n\nsecond paragraph\n\nthird paragraph"
	got := truncateNote(long, 40)
	assert.LessOrEqual(t, len(got), 40)
	assert.Contains(t, got, "first paragraph")
}
