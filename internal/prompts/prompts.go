// Package prompts provides the fixed prompts used by the comparison modes.
package prompts

import (
	"fmt"
	"strings"
)

// TerminationMarker ends every restricted answer and doubles as its stop sequence.
const TerminationMarker = "---"

// RestrictionInstruction is the system message sent with restricted requests.
const RestrictionInstruction = `Answer briefly. Two or three sentences at most.
Reply with plain text only, no headings and no lists.
End the answer with the marker ` + TerminationMarker

// DiagnosticTask is the fixed question the reasoning pipeline answers.
const DiagnosticTask = `A bat and a ball cost $1.10 in total. The bat costs $1.00 more than the ball.
A second ball costs twice as much as the first one. How much do the bat and both balls cost together?`

// StepByStep appends a chain-of-thought cue to a task.
func StepByStep(task string) string {
	return task + "\n\nReason step by step before giving the final answer."
}

// AuthorPrompt asks the model to write a prompt that solves the task.
func AuthorPrompt(task string) string {
	return fmt.Sprintf(`Write a prompt that would make a language model solve the task below as accurately as possible.
Reply with the prompt only, without any commentary.

Task:
%s`, task)
}

// JoinAuthored combines an authored prompt with the answer it produced.
func JoinAuthored(authored, answer string) string {
	return "Authored prompt:\n" + authored + "\n\nAnswer:\n" + answer
}

// Experts asks for three expert personas to weigh in within one answer.
func Experts(task string) string {
	return fmt.Sprintf(`Three experts discuss the task below: a mathematician, a software engineer and a skeptical reviewer.
Give each expert's opinion and final answer in turn, all in one response.

Task:
%s`, task)
}

// Candidate is one prior answer fed into Synthesis.
type Candidate struct {
	Title string
	Text  string
}

// Synthesis asks whether the candidate answers differ and which one is most accurate.
func Synthesis(task string, candidates []Candidate) string {
	var sb strings.Builder
	sb.WriteString("The task below was answered in ")
	sb.WriteString(fmt.Sprint(len(candidates)))
	sb.WriteString(" different ways.\n\nTask:\n")
	sb.WriteString(task)
	sb.WriteString("\n")
	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("\n### Answer %d: %s\n%s\n", i+1, c.Title, c.Text))
	}
	sb.WriteString("\nDo these answers materially differ? Which one is the most accurate, and why?")
	return sb.String()
}
