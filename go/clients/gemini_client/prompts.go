package gemini_client

import (
	"fmt"
	"strings"

	"github.com/mcdev12/mockdrive/go/internal/models"
)

func questionPrompt(req models.GenerationRequest, maxQuestions int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are conducting the %q round of a job interview at %s difficulty.\n", req.RoundTitle, req.Difficulty)
	fmt.Fprintf(&b, "Ask at most %d questions in total. Ask one question at a time and build on the candidate's previous answers.\n", maxQuestions)
	if len(req.PriorQuestions) > 0 {
		b.WriteString("Conversation so far:\n")
		for i, q := range req.PriorQuestions {
			fmt.Fprintf(&b, "Q%d: %s\n", i+1, q)
			if i < len(req.PriorAnswers) {
				fmt.Fprintf(&b, "A%d: %s\n", i+1, req.PriorAnswers[i])
			}
		}
	}
	b.WriteString(`Respond with JSON only: {"nextQuestion": string, "isComplete": boolean}. Set isComplete to true when you have enough signal to end the interview.`)
	return b.String()
}

func evaluationPrompt(roundTitle string, transcript []models.InterviewTurn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate the candidate's performance in the %q interview round.\n", roundTitle)
	b.WriteString("Transcript:\n")
	for i, t := range transcript {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n", i+1, t.Question, i+1, t.Answer)
	}
	b.WriteString(`Respond with JSON only: {"scores": {"communication": number, "technical": number, "problemSolving": number}, "overall": number, "feedback": string, "sentiment": "POSITIVE" | "NEUTRAL" | "NEGATIVE"}. All scores are between 0 and 10.`)
	return b.String()
}

// stripFences removes a markdown code fence the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
