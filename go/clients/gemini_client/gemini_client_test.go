package gemini_client

import (
	"context"
	"errors"
	"testing"

	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type stubModels struct {
	text    string
	err     error
	calls   int
	prompts []string
}

func (s *stubModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	for _, c := range contents {
		for _, p := range c.Parts {
			s.prompts = append(s.prompts, p.Text)
		}
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(s.text, genai.RoleModel)}},
	}, nil
}

func TestNextQuestion(t *testing.T) {
	stub := &stubModels{text: "```json\n{\"nextQuestion\": \"How does a hash map resize?\", \"isComplete\": false}\n```"}
	client := newGeminiClient(stub, Config{})

	resp, err := client.NextQuestion(context.Background(), models.GenerationRequest{
		RoundTitle:     "Technical Interview",
		PriorQuestions: []string{"Tell me about yourself."},
		PriorAnswers:   []string{"I write Go."},
		Difficulty:     "medium",
	})
	require.NoError(t, err)
	assert.Equal(t, "How does a hash map resize?", resp.NextQuestion)
	assert.False(t, resp.IsComplete)
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "A1: I write Go.")
}

func TestNextQuestion_StopsAtCapWithoutCallingModel(t *testing.T) {
	stub := &stubModels{}
	client := newGeminiClient(stub, Config{MaxQuestions: 2})

	resp, err := client.NextQuestion(context.Background(), models.GenerationRequest{PriorQuestions: []string{"a", "b"}})
	require.NoError(t, err)
	assert.True(t, resp.IsComplete)
	assert.Zero(t, stub.calls)
}

func TestNextQuestion_Errors(t *testing.T) {
	_, err := newGeminiClient(&stubModels{err: errors.New("503")}, Config{}).
		NextQuestion(context.Background(), models.GenerationRequest{})
	require.Error(t, err)

	_, err = newGeminiClient(&stubModels{text: "not json"}, Config{}).
		NextQuestion(context.Background(), models.GenerationRequest{})
	require.Error(t, err)

	_, err = newGeminiClient(&stubModels{text: `{"nextQuestion": "  "}`}, Config{}).
		NextQuestion(context.Background(), models.GenerationRequest{})
	require.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	stub := &stubModels{text: `{"scores": {"technical": 7}, "overall": 7.5, "feedback": "Solid fundamentals.", "sentiment": "positive"}`}
	rubric, err := newGeminiClient(stub, Config{}).Evaluate(context.Background(), "Technical Interview", []models.InterviewTurn{{Question: "q", Answer: "a"}})
	require.NoError(t, err)

	assert.Equal(t, 7.5, rubric.Overall)
	assert.Equal(t, "POSITIVE", rubric.Sentiment)
	assert.Equal(t, 7.0, rubric.Scores["technical"])
}

func TestParseRubric_Fallback(t *testing.T) {
	fallback := models.FallbackRubric()
	assert.Equal(t, fallback, parseRubric("the candidate did fine"))
	assert.Equal(t, fallback, parseRubric(`{"feedback": "no score"}`))
	assert.Equal(t, fallback, parseRubric(`{"overall": 42}`))
}

func TestEvaluate_TransportErrorIsReturned(t *testing.T) {
	_, err := newGeminiClient(&stubModels{err: errors.New("deadline exceeded")}, Config{}).
		Evaluate(context.Background(), "HR", nil)
	require.Error(t, err)
}
