package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/mockdrive/go/internal/models"
)

// driveFile mirrors the YAML drive definition.
type driveFile struct {
	ID              string        `yaml:"id"`
	Title           string        `yaml:"title"`
	DefaultDuration time.Duration `yaml:"default_duration"`
	Sections        []sectionFile `yaml:"sections"`
}

type sectionFile struct {
	ID         string         `yaml:"id"`
	RoundTitle string         `yaml:"round_title"`
	Name       string         `yaml:"name"`
	Kind       string         `yaml:"kind"`
	Order      int            `yaml:"order"`
	Duration   time.Duration  `yaml:"duration"`
	Questions  []questionFile `yaml:"questions"`
}

type questionFile struct {
	ID      string       `yaml:"id"`
	Text    string       `yaml:"text"`
	Type    string       `yaml:"type"`
	Options []optionFile `yaml:"options"`
	Coding  *codingFile  `yaml:"coding"`
}

type optionFile struct {
	ID      string `yaml:"id"`
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

type codingFile struct {
	InputFormat  string            `yaml:"input_format"`
	OutputFormat string            `yaml:"output_format"`
	DriverCode   map[string]string `yaml:"driver_code"`
	TestCases    []struct {
		Input  string `yaml:"input"`
		Output string `yaml:"output"`
		Hidden bool   `yaml:"hidden"`
	} `yaml:"test_cases"`
}

// parseDrive decodes a drive file. Missing ids are derived from the drive
// id and names so reseeding the same file updates rows in place.
func parseDrive(data []byte) (models.Drive, []models.SectionDef, error) {
	var f driveFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return models.Drive{}, nil, fmt.Errorf("failed to parse drive file: %w", err)
	}
	if strings.TrimSpace(f.Title) == "" {
		return models.Drive{}, nil, fmt.Errorf("drive title is required")
	}

	driveID, err := idOrDerived(f.ID, uuid.NameSpaceOID, f.Title)
	if err != nil {
		return models.Drive{}, nil, fmt.Errorf("invalid drive id: %w", err)
	}
	drive := models.Drive{ID: driveID, Title: f.Title, DefaultDuration: f.DefaultDuration}

	sections := make([]models.SectionDef, 0, len(f.Sections))
	for i, s := range f.Sections {
		kind := models.RoundKind(strings.ToLower(strings.TrimSpace(s.Kind)))
		switch kind {
		case models.RoundKindObjective, models.RoundKindCoding, models.RoundKindInterview:
		case "":
			kind = models.RoundKindObjective
		default:
			return models.Drive{}, nil, fmt.Errorf("section %d: unknown kind %q", i, s.Kind)
		}

		sectionID, err := idOrDerived(s.ID, driveID, fmt.Sprintf("%s/%s/%d", s.RoundTitle, s.Name, i))
		if err != nil {
			return models.Drive{}, nil, fmt.Errorf("section %d: invalid id: %w", i, err)
		}

		def := models.SectionDef{
			ID:         sectionID,
			DriveID:    driveID,
			RoundTitle: s.RoundTitle,
			Name:       s.Name,
			Kind:       kind,
			Order:      s.Order,
			Duration:   s.Duration,
		}
		for j, q := range s.Questions {
			if q.ID == "" {
				return models.Drive{}, nil, fmt.Errorf("section %d question %d: id is required", i, j)
			}
			def.Questions = append(def.Questions, toQuestion(q))
		}
		sections = append(sections, def)
	}
	return drive, sections, nil
}

func toQuestion(q questionFile) models.Question {
	out := models.Question{
		ID:   q.ID,
		Text: q.Text,
		Type: models.QuestionType(strings.ToUpper(q.Type)),
	}
	for _, o := range q.Options {
		out.Options = append(out.Options, models.Option{ID: o.ID, Text: o.Text, IsCorrect: o.Correct})
	}
	if q.Coding != nil {
		meta := &models.CodingMetadata{
			InputFormat:  q.Coding.InputFormat,
			OutputFormat: q.Coding.OutputFormat,
			DriverCode:   q.Coding.DriverCode,
		}
		for _, tc := range q.Coding.TestCases {
			meta.TestCases = append(meta.TestCases, models.TestCase{Input: tc.Input, Output: tc.Output, IsHidden: tc.Hidden})
		}
		out.Coding = meta
	}
	return out
}

func idOrDerived(raw string, space uuid.UUID, name string) (uuid.UUID, error) {
	if raw != "" {
		return uuid.Parse(raw)
	}
	return uuid.NewSHA1(space, []byte(name)), nil
}
