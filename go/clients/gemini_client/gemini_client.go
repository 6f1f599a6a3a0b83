package gemini_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	DefaultModel        = "gemini-2.0-flash"
	DefaultMaxQuestions = 20
)

// contentGenerator is the part of genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient generates interview questions and grades transcripts.
type GeminiClient struct {
	models       contentGenerator
	model        string
	maxQuestions int
}

type Config struct {
	APIKey       string
	Model        string
	MaxQuestions int
}

func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGeminiClient(client.Models, cfg), nil
}

func newGeminiClient(models contentGenerator, cfg Config) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = DefaultMaxQuestions
	}
	return &GeminiClient{models: models, model: cfg.Model, maxQuestions: cfg.MaxQuestions}
}

func (c *GeminiClient) generateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.4),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return stripFences(resp.Text()), nil
}

type questionResponse struct {
	NextQuestion string `json:"nextQuestion"`
	IsComplete   bool   `json:"isComplete"`
}

// NextQuestion asks for the next interview question. The interview is
// complete once the question cap is reached, without calling the model.
func (c *GeminiClient) NextQuestion(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error) {
	if len(req.PriorQuestions) >= c.maxQuestions {
		return &models.GenerationResponse{IsComplete: true}, nil
	}

	text, err := c.generateJSON(ctx, questionPrompt(req, c.maxQuestions))
	if err != nil {
		return nil, err
	}

	var out questionResponse
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("failed to parse generated question: %w", err)
	}
	out.NextQuestion = strings.TrimSpace(out.NextQuestion)
	if !out.IsComplete && out.NextQuestion == "" {
		return nil, errors.New("model returned neither a question nor completion")
	}
	return &models.GenerationResponse{NextQuestion: out.NextQuestion, IsComplete: out.IsComplete}, nil
}

// Evaluate grades a transcript. A response that cannot be parsed yields the
// fallback rubric; only transport failures are returned as errors.
func (c *GeminiClient) Evaluate(ctx context.Context, roundTitle string, transcript []models.InterviewTurn) (*models.InterviewRubric, error) {
	text, err := c.generateJSON(ctx, evaluationPrompt(roundTitle, transcript))
	if err != nil {
		return nil, err
	}
	rubric := parseRubric(text)
	return &rubric, nil
}

type rubricResponse struct {
	Scores    map[string]float64 `json:"scores"`
	Overall   *float64           `json:"overall"`
	Feedback  string             `json:"feedback"`
	Sentiment string             `json:"sentiment"`
}

func parseRubric(text string) models.InterviewRubric {
	var r rubricResponse
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		log.Warn().Err(err).Msg("malformed evaluation response, using fallback rubric")
		return models.FallbackRubric()
	}
	if r.Overall == nil || *r.Overall < 0 || *r.Overall > 10 {
		log.Warn().Msg("evaluation score missing or out of range, using fallback rubric")
		return models.FallbackRubric()
	}
	out := models.InterviewRubric{
		Scores:    r.Scores,
		Overall:   *r.Overall,
		Feedback:  r.Feedback,
		Sentiment: strings.ToUpper(r.Sentiment),
	}
	if out.Sentiment == "" {
		out.Sentiment = "NEUTRAL"
	}
	return out
}
