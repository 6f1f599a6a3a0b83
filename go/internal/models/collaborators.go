package models

import "errors"

// ErrUnsupportedLanguage is returned by a judge for a language it cannot run.
// Retrying never helps.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ExecutionRequest is one judge run of a candidate program.
type ExecutionRequest struct {
	Language   string `json:"language"`
	SourceCode string `json:"source_code"`
	Stdin      string `json:"stdin"`
}

// ExecutionResult is the judge output of one run.
type ExecutionResult struct {
	Stdout        string          `json:"stdout"`
	Stderr        string          `json:"stderr"`
	CompileOutput string          `json:"compile_output"`
	Status        ExecutionStatus `json:"status,omitempty"` // empty when the judge reports none
}

// ExecutionStatus is how a judge run ended.
type ExecutionStatus string

const (
	ExecutionAccepted      ExecutionStatus = "ACCEPTED"
	ExecutionWrongAnswer   ExecutionStatus = "WRONG_ANSWER"
	ExecutionTimeLimit     ExecutionStatus = "TIME_LIMIT_EXCEEDED"
	ExecutionCompileError  ExecutionStatus = "COMPILATION_ERROR"
	ExecutionRuntimeError  ExecutionStatus = "RUNTIME_ERROR"
	ExecutionInternalError ExecutionStatus = "INTERNAL_ERROR"
)

// InterviewTurn is one question and the candidate's reply.
type InterviewTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// GenerationRequest asks the conversational generator for the next question.
type GenerationRequest struct {
	RoundTitle     string   `json:"round_title"`
	PriorQuestions []string `json:"prior_questions"`
	PriorAnswers   []string `json:"prior_answers"`
	Difficulty     string   `json:"difficulty"`
}

// GenerationResponse carries either the next question or completion.
type GenerationResponse struct {
	NextQuestion string `json:"next_question,omitempty"`
	IsComplete   bool   `json:"is_complete"`
}

// InterviewRubric is the structured evaluation of an interview transcript.
type InterviewRubric struct {
	Scores    map[string]float64 `json:"scores,omitempty"`
	Overall   float64            `json:"overall"` // 0..10
	Feedback  string             `json:"feedback"`
	Sentiment string             `json:"sentiment"`
}

// FallbackRubric is used when an evaluation cannot be parsed.
func FallbackRubric() InterviewRubric {
	return InterviewRubric{Overall: 5, Feedback: "Good attempt.", Sentiment: "NEUTRAL"}
}
