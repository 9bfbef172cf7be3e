package gemini

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/llm"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

func loadTemplates() (*template.Template, error) {
	return template.ParseFS(promptFS, "prompts/*.tmpl")
}

// contextLine is one prior conversation turn rendered into a prompt.
type contextLine struct {
	Role string
	Text string
}

// dueLine is one due review item rendered into a grading prompt.
type dueLine struct {
	Kind    string
	Content string
}

// gradeLine is one graded turn rendered into a summary prompt.
type gradeLine struct {
	Overall       int
	Grammar       int
	Vocab         int
	Pronunciation int
	Fluency       int
	Naturalness   int
	IssueKinds    string
}

type gradeData struct {
	CurrentLevel    string
	TargetLevel     string
	Register        string
	Intensity       string
	Mode            string
	LearnerSummary  string
	RecurringErrors string
	Context         []contextLine
	DailyPrompt     string
	DueItems        []dueLine
	Transcript      string
}

type questionsData struct {
	CurrentLevel    string
	TargetLevel     string
	Register        string
	Ramp            string
	LearnerSummary  string
	RecurringErrors string
	Kinds           []llm.QuestionKind
}

type summaryData struct {
	CurrentLevel   string
	TargetLevel    string
	LearnerSummary string
	Grades         []gradeLine
}

type rewriteData struct {
	Current  string
	Grades   []gradeLine
	MaxChars int
}

// formatRecurringErrors renders a pattern map as a stable comma-separated
// list, most frequent first.
func formatRecurringErrors(patterns map[domain.IssueKind]int) string {
	if len(patterns) == 0 {
		return ""
	}
	kinds := make([]domain.IssueKind, 0, len(patterns))
	for kind := range patterns {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if patterns[kinds[i]] != patterns[kinds[j]] {
			return patterns[kinds[i]] > patterns[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s x%d", kind, patterns[kind]))
	}
	return strings.Join(parts, ", ")
}

func issueKindList(issues []domain.Issue) string {
	if len(issues) == 0 {
		return ""
	}
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, string(issue.Kind))
	}
	return strings.Join(parts, ", ")
}

func gradeLines(grades []*domain.Grade) []gradeLine {
	lines := make([]gradeLine, 0, len(grades))
	for _, grade := range grades {
		lines = append(lines, gradeLine{
			Overall:       grade.Scores.Overall,
			Grammar:       grade.Scores.Grammar,
			Vocab:         grade.Scores.Vocab,
			Pronunciation: grade.Scores.Pronunciation,
			Fluency:       grade.Scores.Fluency,
			Naturalness:   grade.Scores.Naturalness,
			IssueKinds:    issueKindList(grade.Issues),
		})
	}
	return lines
}

func (c *Coach) renderPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := c.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %q: %w", name, err)
	}
	return buf.String(), nil
}

// stripCodeFence removes a wrapping markdown code fence, which some model
// responses add despite instructions.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return trimmed
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
