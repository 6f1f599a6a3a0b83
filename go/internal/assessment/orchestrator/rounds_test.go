package orchestrator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func section(title, name string, kind models.RoundKind, order int, questions ...models.Question) models.SectionDef {
	return models.SectionDef{
		ID:         uuid.New(),
		RoundTitle: title,
		Name:       name,
		Kind:       kind,
		Order:      order,
		Questions:  questions,
	}
}

func titles(rounds []models.Round) []string {
	out := make([]string, len(rounds))
	for i, r := range rounds {
		out[i] = r.Title
	}
	return out
}

func TestLoadRounds_GroupsAndOrders(t *testing.T) {
	defs := []models.SectionDef{
		section("HR Interview", "Culture", models.RoundKindInterview, 2),
		section("Coding Challenge", "Arrays", models.RoundKindCoding, 1, models.Question{ID: "c1", Type: models.QuestionTypeCoding}),
		section("Aptitude", "Logic", models.RoundKindObjective, 1, mcq("a2", "x")),
		section("Aptitude", "Numbers", models.RoundKindObjective, 0, mcq("a1", "x")),
		section("Technical Interview", "Systems", models.RoundKindInterview, 2),
	}

	rounds := LoadRounds(defs)
	require.Len(t, rounds, 4)
	assert.Equal(t, []string{"Aptitude", "Coding Challenge", "Technical Interview", "HR Interview"}, titles(rounds))

	apt := rounds[0]
	assert.Equal(t, 1, apt.Number)
	require.Len(t, apt.Sections, 2)
	assert.Equal(t, "Numbers", apt.Sections[0].Name)
	assert.Equal(t, "Logic", apt.Sections[1].Name)
	for i, r := range rounds {
		assert.Equal(t, i+1, r.Number)
	}
}

func TestLoadRounds_IndependentOfInputOrder(t *testing.T) {
	defs := []models.SectionDef{
		section("Technical Interview", "Systems", models.RoundKindInterview, 3),
		section("HR Interview", "Culture", models.RoundKindInterview, 3),
		section("Coding Challenge", "Strings", models.RoundKindCoding, 2, models.Question{ID: "c2", Type: models.QuestionTypeCoding}),
		section("Coding Challenge", "Arrays", models.RoundKindCoding, 2, models.Question{ID: "c1", Type: models.QuestionTypeCoding}),
		section("Aptitude", "Verbal", models.RoundKindObjective, 1, mcq("a1", "x"), models.Question{ID: "v1", Type: models.QuestionTypeAudio}),
		section("General", "Misc", models.RoundKindInterview, 3),
	}
	want := LoadRounds(defs)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.SectionDef(nil), defs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, LoadRounds(shuffled))
	}
	assert.Equal(t, []string{"Aptitude", "Coding Challenge", "Technical Interview", "HR Interview", "General", voiceRoundTitle}, titles(want))
}

func TestLoadRounds_AudioQuestionsMoveToVoiceRound(t *testing.T) {
	defs := []models.SectionDef{
		section("Aptitude", "Mixed", models.RoundKindObjective, 0,
			mcq("a1", "x"),
			models.Question{ID: "v2", Type: models.QuestionTypeAudio},
			models.Question{ID: "v1", Type: models.QuestionTypeAudio},
		),
		section("Spoken", "Only audio", models.RoundKindObjective, 1, models.Question{ID: "v3", Type: models.QuestionTypeAudio}),
	}

	rounds := LoadRounds(defs)
	require.Len(t, rounds, 2)
	assert.Equal(t, 1, rounds[0].QuestionCount())

	voice := rounds[1]
	assert.Equal(t, voiceRoundTitle, voice.Title)
	assert.Equal(t, 2, voice.Number)
	assert.Equal(t, models.RoundKindObjective, voice.Kind)
	ids := []string{}
	for _, q := range voice.Questions() {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []string{"v1", "v2", "v3"}, ids)
	assert.True(t, voice.NeedsMicrophone())
}

func TestLoadRounds_DurationOverride(t *testing.T) {
	a := section("Aptitude", "A", models.RoundKindObjective, 0, mcq("a1", "x"))
	b := section("Aptitude", "B", models.RoundKindObjective, 1, mcq("a2", "x"))
	b.Duration = 20 * time.Minute

	rounds := LoadRounds([]models.SectionDef{a, b})
	require.Len(t, rounds, 1)
	assert.Equal(t, 20*time.Minute, rounds[0].Duration)
}

func TestLoadRounds_EmptyFallsBackToSyntheticRound(t *testing.T) {
	rounds := LoadRounds(nil)
	require.Len(t, rounds, 1)
	assert.Equal(t, fallbackRoundTitle, rounds[0].Title)
	assert.Equal(t, models.RoundKindObjective, rounds[0].Kind)

	// Sections without questions are skipped too.
	rounds = LoadRounds([]models.SectionDef{section("Aptitude", "Empty", models.RoundKindObjective, 0)})
	require.Len(t, rounds, 1)
	assert.Equal(t, fallbackRoundTitle, rounds[0].Title)
}

func TestRoundPriority(t *testing.T) {
	assert.Equal(t, 1, roundPriority(models.RoundKindObjective, "Quant"))
	assert.Equal(t, 1, roundPriority(models.RoundKindInterview, "Voice Assessment"))
	assert.Equal(t, 2, roundPriority(models.RoundKindCoding, "DSA"))
	assert.Equal(t, 3, roundPriority(models.RoundKindInterview, "Technical Round"))
	assert.Equal(t, 4, roundPriority(models.RoundKindInterview, "HR Round"))
	assert.Equal(t, 5, roundPriority(models.RoundKindInterview, "Managerial"))
}
