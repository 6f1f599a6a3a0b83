package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	objectivePassRatio = 0.7
	codingPassRatio    = 0.6
	userCodeMarker     = "{{USER_CODE}}"
)

// Feedback is the stored summary of a scored round.
type Feedback struct {
	Kind      models.RoundKind        `json:"kind"`
	Verdict   string                  `json:"verdict"`
	Answered  int                     `json:"answered"`
	Correct   int                     `json:"correct,omitempty"`
	Total     int                     `json:"total"`
	Passed    bool                    `json:"passed"`
	Questions []QuestionFeedback      `json:"questions,omitempty"`
	Rubric    *models.InterviewRubric `json:"rubric,omitempty"`
	Reason    Reason                  `json:"reason,omitempty"`
}

// QuestionFeedback is the per-question judge summary of a coding round.
type QuestionFeedback struct {
	QuestionID string `json:"question_id"`
	Language   string `json:"language,omitempty"`
	Passed     int    `json:"passed"`
	Total      int    `json:"total"`
	Error      string `json:"error,omitempty"`
}

// Verdict returns "cleared" or "failed" for a frozen answer set.
// Objective and coding rounds clear as soon as one answer exists when
// lenient is set; otherwise they must reach their pass ratio.
func Verdict(kind models.RoundKind, answered int, ratio float64, interviewComplete, lenient bool) string {
	switch kind {
	case models.RoundKindInterview:
		if interviewComplete {
			return "cleared"
		}
		return "failed"
	case models.RoundKindCoding:
		if lenient && answered > 0 || !lenient && ratio >= codingPassRatio {
			return "cleared"
		}
	default:
		if lenient && answered > 0 || !lenient && ratio >= objectivePassRatio {
			return "cleared"
		}
	}
	return "failed"
}

// casePassed reports whether one run produced the expected output and ended
// normally. Judges that report no status are judged on output alone.
func casePassed(res *models.ExecutionResult, tc models.TestCase) bool {
	if res.CompileOutput != "" {
		return false
	}
	if res.Status != "" && res.Status != models.ExecutionAccepted {
		return false
	}
	return strings.TrimSpace(res.Stdout) == strings.TrimSpace(tc.Output)
}

// CountAnswered counts non-blank answers.
func CountAnswered(answers map[string]string) int {
	n := 0
	for _, a := range answers {
		if strings.TrimSpace(a) != "" {
			n++
		}
	}
	return n
}

func (c *Coordinator) score(ctx context.Context, p Payload) (float64, Feedback, error) {
	switch p.Round.Kind {
	case models.RoundKindCoding:
		return c.scoreCoding(ctx, p)
	case models.RoundKindInterview:
		return c.scoreInterview(ctx, p)
	default:
		score, fb := c.scoreObjective(p)
		return score, fb, nil
	}
}

func (c *Coordinator) scoreObjective(p Payload) (float64, Feedback) {
	fb := Feedback{Kind: models.RoundKindObjective, Answered: CountAnswered(p.Answers), Reason: p.Reason}
	for _, q := range p.Round.Questions() {
		fb.Total++
		// Free-response items (voice, text) have no key and are credited when answered.
		if len(q.Options) == 0 {
			if strings.TrimSpace(p.Answers[q.ID]) != "" {
				fb.Correct++
			}
			continue
		}
		if isCorrectOption(q, p.Answers[q.ID]) {
			fb.Correct++
		}
	}

	ratio := 0.0
	if fb.Total > 0 {
		ratio = float64(fb.Correct) / float64(fb.Total)
	}
	fb.Passed = ratio >= objectivePassRatio
	fb.Verdict = Verdict(models.RoundKindObjective, fb.Answered, ratio, false, c.cfg.LenientVerdict)
	return ratio, fb
}

// isCorrectOption accepts either the option id or its text.
func isCorrectOption(q models.Question, answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	for _, o := range q.Options {
		if !o.IsCorrect {
			continue
		}
		if answer == o.ID || answer == strings.TrimSpace(o.Text) {
			return true
		}
	}
	return false
}

// questionTally collects the test case outcomes of one coding question.
type questionTally struct {
	passed      atomic.Int32
	unsupported atomic.Bool
}

func (c *Coordinator) scoreCoding(ctx context.Context, p Payload) (float64, Feedback, error) {
	fb := Feedback{Kind: models.RoundKindCoding, Answered: CountAnswered(p.Answers), Reason: p.Reason}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.JudgeParallelism)

	questions := p.Round.Questions()
	results := make([]QuestionFeedback, 0, len(questions))
	tallies := make([]*questionTally, 0, len(questions))

	for _, q := range questions {
		if q.Coding == nil || len(q.Coding.TestCases) == 0 {
			continue
		}
		qf := QuestionFeedback{QuestionID: q.ID, Total: len(q.Coding.TestCases)}
		fb.Total += qf.Total

		tally := &questionTally{}
		tallies = append(tallies, tally)

		code := p.Answers[q.ID]
		if strings.TrimSpace(code) == "" {
			qf.Error = "no submission"
			results = append(results, qf)
			continue
		}
		lang := p.Languages[q.ID]
		if lang == "" {
			lang = p.DefaultLanguage
		}
		if lang == "" {
			lang = "python"
		}
		qf.Language = lang
		source := withDriver(q.Coding.DriverCode[lang], code)
		results = append(results, qf)

		for _, tc := range q.Coding.TestCases {
			tc := tc
			g.Go(func() error {
				if tally.unsupported.Load() {
					return nil
				}
				res, err := c.judge.Execute(gctx, models.ExecutionRequest{Language: lang, SourceCode: source, Stdin: tc.Input})
				if errors.Is(err, models.ErrUnsupportedLanguage) {
					// Same answer every time; the question scores zero instead of failing the round.
					tally.unsupported.Store(true)
					return nil
				}
				if err != nil {
					return fmt.Errorf("judge execution failed: %w", err)
				}
				if casePassed(res, tc) {
					tally.passed.Add(1)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return 0, fb, err
	}

	total := 0
	for i := range results {
		if tallies[i].unsupported.Load() {
			results[i].Passed = 0
			results[i].Error = fmt.Sprintf("unsupported language: %q", results[i].Language)
			continue
		}
		results[i].Passed = int(tallies[i].passed.Load())
		total += results[i].Passed
	}
	fb.Questions = results
	fb.Correct = total

	ratio := 0.0
	if fb.Total > 0 {
		ratio = float64(total) / float64(fb.Total)
	}
	fb.Passed = ratio >= codingPassRatio
	fb.Verdict = Verdict(models.RoundKindCoding, fb.Answered, ratio, false, c.cfg.LenientVerdict)
	return ratio, fb, nil
}

func withDriver(driver, code string) string {
	if driver == "" || !strings.Contains(driver, userCodeMarker) {
		return code
	}
	return strings.Replace(driver, userCodeMarker, code, 1)
}

func (c *Coordinator) scoreInterview(ctx context.Context, p Payload) (float64, Feedback, error) {
	fb := Feedback{Kind: models.RoundKindInterview, Total: len(p.Transcript), Reason: p.Reason}
	for _, turn := range p.Transcript {
		if strings.TrimSpace(turn.Answer) != "" {
			fb.Answered++
		}
	}
	complete := p.Reason == ReasonInterviewComplete
	fb.Verdict = Verdict(models.RoundKindInterview, fb.Answered, 0, complete, c.cfg.LenientVerdict)

	if fb.Answered == 0 || c.evaluator == nil {
		rubric := models.InterviewRubric{Feedback: "No responses were recorded.", Sentiment: "NEUTRAL"}
		fb.Rubric = &rubric
		return 0, fb, nil
	}

	rubric, err := c.evaluator.Evaluate(ctx, p.Round.Title, p.Transcript)
	if err != nil {
		return 0, fb, fmt.Errorf("interview evaluation failed: %w", err)
	}
	if rubric == nil || rubric.Overall < 0 || rubric.Overall > 10 {
		log.Warn().Str("round", p.Round.Title).Msg("malformed interview rubric, using fallback")
		fallback := models.FallbackRubric()
		rubric = &fallback
	}
	fb.Rubric = rubric
	fb.Passed = rubric.Overall >= 6
	return rubric.Overall / 10, fb, nil
}
