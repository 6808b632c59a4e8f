package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortforge/internal/core/domain"
)

type fakeLLM struct {
	response string
	err      error
	systems  []string
}

func (f *fakeLLM) GenerateText(_ context.Context, system, _ string) (string, error) {
	f.systems = append(f.systems, system)
	return f.response, f.err
}

func TestParseFeedback_FullResponse(t *testing.T) {
	verdict := ParseFeedback(`RESULT: approved
SCORE: 8
FEEDBACK: Strong hook, pacing dips in the middle.
The ending lands well.
SUGGESTIONS:
- Tighten the second paragraph
- Add a beat before the twist`)

	assert.Equal(t, domain.LabelApproved, verdict.Result)
	assert.Equal(t, 8, verdict.Score)
	assert.Equal(t, "Strong hook, pacing dips in the middle. The ending lands well.", verdict.Feedback)
	assert.Equal(t, []string{"Tighten the second paragraph", "Add a beat before the twist"}, verdict.Suggestions)
	assert.True(t, verdict.Approved())
}

func TestParseFeedback_ResultVariants(t *testing.T) {
	assert.Equal(t, domain.LabelApproved, ParseFeedback("RESULT: [approved]\nSCORE: 7").Result)
	assert.Equal(t, domain.LabelNeedsRevision, ParseFeedback("RESULT: needs revision\nSCORE: 6").Result)
	assert.Equal(t, domain.LabelRejected, ParseFeedback("RESULT: rejected\nSCORE: 6").Result)
	assert.Equal(t, domain.LabelRejected, ParseFeedback("RESULT: total nonsense\nSCORE: 6").Result)
}

func TestParseFeedback_ScoreClamping(t *testing.T) {
	assert.Equal(t, 10, ParseFeedback("RESULT: approved\nSCORE: 15").Score)
	assert.Equal(t, 1, ParseFeedback("RESULT: rejected\nSCORE: -2").Score)
	assert.Equal(t, 7, ParseFeedback("RESULT: approved\nSCORE: 7 out of 10").Score)
}

func TestParseFeedback_MalformedDefaults(t *testing.T) {
	verdict := ParseFeedback("I liked it, good job overall!")
	assert.Equal(t, domain.LabelRejected, verdict.Result)
	assert.Equal(t, 5, verdict.Score)

	verdict = ParseFeedback("RESULT: approved\nSCORE: banana")
	assert.Equal(t, 5, verdict.Score, "unparseable score defaults to the neutral midpoint")
}

func TestParseFeedback_ScoreAuthorityOverLabel(t *testing.T) {
	// The parser keeps the raw label; Effective applies score authority.
	verdict := ParseFeedback("RESULT: rejected\nSCORE: 9")
	assert.Equal(t, domain.LabelRejected, verdict.Result)
	assert.Equal(t, domain.LabelApproved, verdict.Effective())

	verdict = ParseFeedback("RESULT: approved\nSCORE: 3")
	assert.Equal(t, domain.LabelRejected, verdict.Effective())
}

func TestReviewTopic_CallsLLM(t *testing.T) {
	llm := &fakeLLM{response: "RESULT: approved\nSCORE: 9\nFEEDBACK: solid"}
	s := NewSupervisor(slog.New(slog.NewJSONHandler(os.Stdout, nil)), llm)

	verdict, err := s.ReviewTopic(context.Background(), domain.Candidate{Title: "t", Source: "r/tifu", Score: 1200})
	require.NoError(t, err)
	assert.True(t, verdict.Approved())
}

func TestReviewError_Propagates(t *testing.T) {
	llm := &fakeLLM{err: errors.New("overloaded")}
	s := NewSupervisor(slog.New(slog.NewJSONHandler(os.Stdout, nil)), llm)

	_, err := s.ReviewScript(context.Background(), &domain.Script{}, domain.Candidate{})
	assert.ErrorContains(t, err, "overloaded")
}

func TestFinalReview_UsesStricterSystemPrompt(t *testing.T) {
	llm := &fakeLLM{response: "RESULT: approved\nSCORE: 9"}
	s := NewSupervisor(slog.New(slog.NewJSONHandler(os.Stdout, nil)), llm)

	unit := &domain.ShortUnit{
		Topic:  &domain.Candidate{Title: "t"},
		Script: &domain.Script{Hook: "h", Body: "b", CTA: "c"},
		Images: []domain.ImageResult{{}},
		Audio:  &domain.AudioResult{Duration: 48},
	}
	_, err := s.FinalReview(context.Background(), unit)
	require.NoError(t, err)
	require.Len(t, llm.systems, 1)
	assert.Contains(t, llm.systems[0], "FINAL review")
}
