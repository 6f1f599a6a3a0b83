package main

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/mockdrive/go/internal/models"
)

func TestParseDrive_SampleFile(t *testing.T) {
	data, err := os.ReadFile("../../assets/sample_drive.yaml")
	require.NoError(t, err)

	drive, sections, err := parseDrive(data)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer Drive", drive.Title)
	assert.Equal(t, time.Hour, drive.DefaultDuration)
	require.Len(t, sections, 4)

	apt := sections[0]
	assert.Equal(t, drive.ID, apt.DriveID)
	assert.Equal(t, models.RoundKindObjective, apt.Kind)
	assert.Equal(t, 20*time.Minute, apt.Duration)
	require.Len(t, apt.Questions, 2)
	assert.Equal(t, models.QuestionTypeMCQ, apt.Questions[0].Type)
	assert.True(t, apt.Questions[1].Options[1].IsCorrect)

	code := sections[1].Questions[0]
	assert.Equal(t, models.QuestionTypeCoding, code.Type)
	require.NotNil(t, code.Coding)
	assert.Len(t, code.Coding.TestCases, 3)
	assert.True(t, code.Coding.TestCases[2].IsHidden)
	assert.Contains(t, code.Coding.DriverCode["python"], "{{USER_CODE}}")

	assert.Equal(t, models.RoundKindInterview, sections[2].Kind)
	assert.Empty(t, sections[2].Questions)
	assert.Equal(t, models.QuestionTypeAudio, sections[3].Questions[0].Type)
}

func TestParseDrive_IDsAreStable(t *testing.T) {
	data := []byte("title: Drive\nsections:\n  - round_title: A\n    name: S\n")
	d1, s1, err := parseDrive(data)
	require.NoError(t, err)
	d2, s2, err := parseDrive(data)
	require.NoError(t, err)

	assert.Equal(t, d1.ID, d2.ID)
	assert.Equal(t, s1[0].ID, s2[0].ID)
	assert.Equal(t, models.RoundKindObjective, s1[0].Kind)
}

func TestParseDrive_Rejects(t *testing.T) {
	tests := map[string]string{
		"missing title":       "sections: []\n",
		"unknown kind":        "title: D\nsections:\n  - name: S\n    kind: essay\n",
		"question without id": "title: D\nsections:\n  - name: S\n    questions:\n      - text: hi\n",
		"bad drive id":        "id: nope\ntitle: D\n",
		"not yaml":            "title: [unclosed\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := parseDrive([]byte(data))
			assert.Error(t, err)
		})
	}
}
