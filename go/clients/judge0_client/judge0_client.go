package judge0_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/mockdrive/go/clients"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrUnsupportedLanguage is returned for a language Judge0 is not configured for.
var ErrUnsupportedLanguage = models.ErrUnsupportedLanguage

type Judge0Client struct {
	*clients.BaseClient
}

type Config struct {
	BaseURL   string
	APIKey    string
	RateLimit float64
	Timeout   time.Duration
}

func NewJudge0Client(cfg Config) *Judge0Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}
	client := &Judge0Client{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
	}

	if cfg.APIKey != "" {
		client.SetHeader(RapidAPIKeyHeader, cfg.APIKey)
		client.SetHeader(RapidAPIHostHeader, RapidAPIHost)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	client.SetRateLimit(cfg.RateLimit, 2)

	return client
}

type submissionRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type submissionStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type submissionResponse struct {
	Stdout        *string          `json:"stdout"`
	Stderr        *string          `json:"stderr"`
	CompileOutput *string          `json:"compile_output"`
	Message       *string          `json:"message"`
	Status        submissionStatus `json:"status"`
}

// Execute runs one program against one stdin and waits for the result.
func (c *Judge0Client) Execute(ctx context.Context, req models.ExecutionRequest) (*models.ExecutionResult, error) {
	languageID, ok := LanguageID(strings.ToLower(req.Language))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.Language)
	}

	body, err := json.Marshal(submissionRequest{
		SourceCode: req.SourceCode,
		LanguageID: languageID,
		Stdin:      req.Stdin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission: %w", err)
	}

	raw, err := c.Post(ctx, SubmissionsEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to submit to judge: %w", err)
	}

	var resp submissionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode judge response: %w", err)
	}

	log.Debug().
		Str("language", req.Language).
		Int("status_id", resp.Status.ID).
		Str("status", resp.Status.Description).
		Msg("judge run finished")

	return &models.ExecutionResult{
		Stdout:        deref(resp.Stdout),
		Stderr:        deref(resp.Stderr),
		CompileOutput: deref(resp.CompileOutput),
		Status:        executionStatus(resp.Status.ID),
	}, nil
}

// executionStatus maps Judge0 status ids. Queued and processing runs carry no verdict.
func executionStatus(id int) models.ExecutionStatus {
	switch {
	case id == 3:
		return models.ExecutionAccepted
	case id == 4:
		return models.ExecutionWrongAnswer
	case id == 5:
		return models.ExecutionTimeLimit
	case id == 6:
		return models.ExecutionCompileError
	case id >= 7 && id <= 12:
		return models.ExecutionRuntimeError
	case id >= 13:
		return models.ExecutionInternalError
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
