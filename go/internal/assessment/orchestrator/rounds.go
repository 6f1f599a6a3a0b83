package orchestrator

import (
	"sort"
	"strings"
	"time"

	"github.com/mcdev12/mockdrive/go/internal/models"
)

const (
	fallbackRoundTitle = "Assessment"
	voiceRoundTitle    = "Voice Assessment"
)

type roundGroup struct {
	title    string
	minOrder int
	sections []models.SectionDef
}

// LoadRounds assembles ordered rounds from raw section definitions. Sections
// are grouped by round title; groups are ordered by their lowest declared
// order, then by kind priority, then by title. Audio questions move to a
// trailing voice round. The result does not depend on input order.
func LoadRounds(defs []models.SectionDef) []models.Round {
	groups := make(map[string]*roundGroup)
	var voice []models.Question

	for _, def := range defs {
		kept := make([]models.Question, 0, len(def.Questions))
		for _, q := range def.Questions {
			if q.Type == models.QuestionTypeAudio {
				voice = append(voice, q)
				continue
			}
			kept = append(kept, q)
		}
		if len(kept) == 0 && def.Kind != models.RoundKindInterview {
			continue
		}
		def.Questions = kept

		title := strings.TrimSpace(def.RoundTitle)
		if title == "" {
			title = defaultTitle(def.Kind)
		}
		g, ok := groups[title]
		if !ok {
			g = &roundGroup{title: title, minOrder: def.Order}
			groups[title] = g
		}
		if def.Order < g.minOrder {
			g.minOrder = def.Order
		}
		g.sections = append(g.sections, def)
	}

	ordered := make([]*roundGroup, 0, len(groups))
	for _, g := range groups {
		sort.Slice(g.sections, func(i, j int) bool {
			a, b := g.sections[i], g.sections[j]
			if a.Order != b.Order {
				return a.Order < b.Order
			}
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.ID.String() < b.ID.String()
		})
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.minOrder != b.minOrder {
			return a.minOrder < b.minOrder
		}
		pa, pb := roundPriority(a.kind(), a.title), roundPriority(b.kind(), b.title)
		if pa != pb {
			return pa < pb
		}
		return a.title < b.title
	})

	rounds := make([]models.Round, 0, len(ordered)+1)
	for _, g := range ordered {
		rounds = append(rounds, g.round(len(rounds)+1))
	}

	if len(voice) > 0 {
		sort.SliceStable(voice, func(i, j int) bool { return voice[i].ID < voice[j].ID })
		rounds = append(rounds, models.Round{
			Number: len(rounds) + 1,
			Title:  voiceRoundTitle,
			Kind:   models.RoundKindObjective,
			Sections: []models.Section{{
				Name:      voiceRoundTitle,
				Questions: voice,
			}},
		})
	}

	if len(rounds) == 0 {
		return []models.Round{{Number: 1, Title: fallbackRoundTitle, Kind: models.RoundKindObjective}}
	}
	return rounds
}

func (g *roundGroup) kind() models.RoundKind {
	return g.sections[0].Kind
}

func (g *roundGroup) round(number int) models.Round {
	r := models.Round{Number: number, Title: g.title, Kind: g.kind()}
	var override time.Duration
	for _, s := range g.sections {
		if s.Duration > override {
			override = s.Duration
		}
		r.Sections = append(r.Sections, models.Section{
			ID:        s.ID,
			Name:      s.Name,
			Order:     s.Order,
			Questions: s.Questions,
		})
	}
	r.Duration = override
	return r
}

// roundPriority breaks ties between rounds declared at the same order.
func roundPriority(kind models.RoundKind, title string) int {
	t := strings.ToLower(title)
	switch {
	case kind == models.RoundKindObjective || strings.Contains(t, "assessment"):
		return 1
	case kind == models.RoundKindCoding:
		return 2
	case strings.Contains(t, "technical"):
		return 3
	case strings.Contains(t, "hr"):
		return 4
	}
	return 5
}

func defaultTitle(kind models.RoundKind) string {
	switch kind {
	case models.RoundKindCoding:
		return "Coding"
	case models.RoundKindInterview:
		return "Interview"
	}
	return fallbackRoundTitle
}
