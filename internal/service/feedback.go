package service

import (
	"fmt"
	"strings"

	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/llm"
)

// FormatFeedback renders a graded turn as a single chat message: the
// transcript echo, corrections, suggestions, drill, score line, and the
// coach's reply. The reply always comes last so the conversation reads
// naturally even when the feedback block above it is long.
func FormatFeedback(transcript string, resp *llm.GradeResponse) string {
	var b strings.Builder

	b.WriteString("You said: ")
	b.WriteString(transcript)
	b.WriteString("\n")

	if resp.Praise != "" {
		b.WriteString("\n")
		b.WriteString(resp.Praise)
		b.WriteString("\n")
	}

	if len(resp.Corrections) > 0 {
		b.WriteString("\nCorrections:\n")
		for i, issue := range resp.Corrections {
			fmt.Fprintf(&b, "%d. [%s] %s -> %s\n", i+1, issue.Kind, issue.Original, issue.Corrected)
			if issue.Explanation != "" {
				fmt.Fprintf(&b, "   %s\n", issue.Explanation)
			}
		}
	}

	if len(resp.Suggestions) > 0 {
		b.WriteString("\nMore natural:\n")
		for _, s := range resp.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	if len(resp.KeyVocab) > 0 {
		b.WriteString("\nVocab:\n")
		for _, v := range resp.KeyVocab {
			if v.Reading != "" {
				fmt.Fprintf(&b, "- %s (%s): %s\n", v.Word, v.Reading, v.Gloss)
			} else {
				fmt.Fprintf(&b, "- %s: %s\n", v.Word, v.Gloss)
			}
		}
	}

	if resp.Drill != nil {
		fmt.Fprintf(&b, "\nDrill (%s): %s\n", resp.Drill.Type, resp.Drill.Prompt)
	}

	b.WriteString("\n")
	b.WriteString(formatScoreLine(resp.Scores))
	b.WriteString("\n\n")
	b.WriteString(resp.ReplyText)
	if resp.FollowUp != "" {
		b.WriteString("\n\n")
		b.WriteString(resp.FollowUp)
	}

	return b.String()
}

func formatScoreLine(s domain.Scores) string {
	return fmt.Sprintf(
		"Score: %d (grammar %d, vocab %d, pronunciation %d, fluency %d, naturalness %d)",
		s.Overall, s.Grammar, s.Vocab, s.Pronunciation, s.Fluency, s.Naturalness,
	)
}

// FormatDailyPrompts renders the morning prompt message.
func FormatDailyPrompts(prompts []*domain.DailyPrompt, streak int) string {
	var b strings.Builder

	b.WriteString("Good morning! Today's practice:\n")
	for i, p := range prompts {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, p.PromptText)
		if p.Gloss != "" {
			fmt.Fprintf(&b, "   (%s)\n", p.Gloss)
		}
	}
	if streak > 1 {
		fmt.Fprintf(&b, "\nStreak: %d days. Keep it going!", streak)
	}

	return b.String()
}

// FormatNudge renders the afternoon reminder for the oldest unanswered
// prompt.
func FormatNudge(prompt *domain.DailyPrompt) string {
	var b strings.Builder

	b.WriteString("Still waiting on this one:\n\n")
	b.WriteString(prompt.PromptText)
	if prompt.Gloss != "" {
		fmt.Fprintf(&b, "\n(%s)", prompt.Gloss)
	}
	b.WriteString("\n\nSend a voice message whenever you're ready.")

	return b.String()
}

// FormatWeeklyReport renders the Sunday summary message.
func FormatWeeklyReport(summary *domain.WeeklySummary, streakMessage string, turnCount int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Weekly report (%d graded turns)\n", turnCount)

	writeSection := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString("\n")
		b.WriteString(title)
		b.WriteString("\n")
		for _, line := range lines {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	writeSection("Highlights:", summary.Highlights)
	writeSection("Improved:", summary.Improvements)
	writeSection("Weak areas:", summary.WeakAreas)
	writeSection("Focus next week:", summary.RecommendedFocus)

	if streakMessage != "" {
		b.WriteString("\n")
		b.WriteString(streakMessage)
	}

	return b.String()
}
