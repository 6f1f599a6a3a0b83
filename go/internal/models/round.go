package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundKind defines how a round is played and scored.
type RoundKind string

const (
	RoundKindObjective RoundKind = "objective"
	RoundKindCoding    RoundKind = "coding"
	RoundKindInterview RoundKind = "interview"
)

// QuestionType defines the answer surface of a single question.
type QuestionType string

const (
	QuestionTypeMCQ    QuestionType = "MCQ"
	QuestionTypeCoding QuestionType = "CODING"
	QuestionTypeAudio  QuestionType = "AUDIO"
	QuestionTypeText   QuestionType = "TEXT"
)

// Option is one choice of an objective question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// TestCase is one judge input/expected-output pair.
type TestCase struct {
	Input    string `json:"input"`
	Output   string `json:"output"`
	IsHidden bool   `json:"is_hidden"`
}

// CodingMetadata carries the judge contract of a coding question.
type CodingMetadata struct {
	InputFormat  string            `json:"input_format"`
	OutputFormat string            `json:"output_format"`
	TestCases    []TestCase        `json:"test_cases"`
	DriverCode   map[string]string `json:"driver_code,omitempty"` // language -> template with {{USER_CODE}}
}

// Question is a single item presented to the candidate.
type Question struct {
	ID      string          `json:"id"`
	Text    string          `json:"text"`
	Type    QuestionType    `json:"type"`
	Options []Option        `json:"options,omitempty"`
	Coding  *CodingMetadata `json:"coding_metadata,omitempty"`
}

// SectionDef is a raw section as stored for a drive, before rounds are assembled.
type SectionDef struct {
	ID         uuid.UUID     `json:"id"`
	DriveID    uuid.UUID     `json:"drive_id"`
	RoundTitle string        `json:"round_title"`
	Name       string        `json:"name"`
	Kind       RoundKind     `json:"kind"`
	Order      int           `json:"order_index"`
	Duration   time.Duration `json:"duration,omitempty"`
	Questions  []Question    `json:"questions"`
}

// Section is a named question grouping inside a round.
type Section struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Order     int        `json:"order_index"`
	Questions []Question `json:"questions"`
}

// Round is an immutable timed stage of a drive.
type Round struct {
	Number   int           `json:"round_number"`
	Title    string        `json:"title"`
	Kind     RoundKind     `json:"kind"`
	Sections []Section     `json:"sections"`
	Duration time.Duration `json:"duration,omitempty"` // zero means the drive default
}

// QuestionCount returns the number of questions across all sections.
func (r Round) QuestionCount() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Questions)
	}
	return n
}

// Questions flattens the round's questions in section order.
func (r Round) Questions() []Question {
	out := make([]Question, 0, r.QuestionCount())
	for _, s := range r.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

// NeedsMicrophone reports whether the round records the candidate's voice.
func (r Round) NeedsMicrophone() bool {
	if r.Kind == RoundKindInterview {
		return true
	}
	for _, q := range r.Questions() {
		if q.Type == QuestionTypeAudio {
			return true
		}
	}
	return false
}
