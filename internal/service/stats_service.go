package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/store"
)

// TrendWindow is how many recent grades feed the trend computation. The
// window is split in half: the newer half against the older half.
const TrendWindow = 40

// Trend compares the recent half of the grade window against the previous
// half for one score dimension.
type Trend struct {
	Recent   float64 `json:"recent"`
	Previous float64 `json:"previous"`
	Delta    float64 `json:"delta"`
}

// StatsView is the learner's progress snapshot.
type StatsView struct {
	GradedTurns   int              `json:"graded_turns"`
	WindowSize    int              `json:"window_size"`
	Overall       Trend            `json:"overall"`
	BySkill       map[string]Trend `json:"by_skill"`
	TopIssueKinds []string         `json:"top_issue_kinds"`
}

// StatsService derives score trends from the recent grade history.
type StatsService struct {
	grades store.GradeStore
	logger *slog.Logger
}

// NewStatsService creates a StatsService.
func NewStatsService(grades store.GradeStore, log *slog.Logger) *StatsService {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StatsService")
	}

	return &StatsService{
		grades: grades,
		logger: log.With(slog.String("component", "stats_service")),
	}
}

// Stats computes the trend view over the last TrendWindow grades. With
// fewer than two grades there is nothing to compare and both halves carry
// the same average.
func (s *StatsService) Stats(ctx context.Context, learnerID uuid.UUID) (*StatsView, error) {
	const op = "stats"

	total, err := s.grades.CountForLearner(ctx, learnerID)
	if err != nil {
		return nil, NewServiceError(op, "failed to count grades", err)
	}

	grades, err := s.grades.ListRecent(ctx, learnerID, TrendWindow)
	if err != nil {
		return nil, NewServiceError(op, "failed to list recent grades", err)
	}

	view := &StatsView{
		GradedTurns: total,
		WindowSize:  len(grades),
		BySkill:     make(map[string]Trend),
	}
	if len(grades) == 0 {
		return view, nil
	}

	// ListRecent is newest-first: the first half is the recent window.
	mid := len(grades) / 2
	if mid == 0 {
		mid = len(grades)
	}
	recent, previous := grades[:mid], grades[mid:]
	if len(previous) == 0 {
		previous = recent
	}

	pick := func(name string, f func(domain.Scores) int) {
		t := Trend{
			Recent:   averageScore(recent, f),
			Previous: averageScore(previous, f),
		}
		t.Delta = t.Recent - t.Previous
		if name == "overall" {
			view.Overall = t
		} else {
			view.BySkill[name] = t
		}
	}
	pick("overall", func(s domain.Scores) int { return s.Overall })
	pick("grammar", func(s domain.Scores) int { return s.Grammar })
	pick("vocab", func(s domain.Scores) int { return s.Vocab })
	pick("pronunciation", func(s domain.Scores) int { return s.Pronunciation })
	pick("fluency", func(s domain.Scores) int { return s.Fluency })
	pick("naturalness", func(s domain.Scores) int { return s.Naturalness })

	patterns := domain.AggregateIssuePatterns(grades)
	view.TopIssueKinds = topKinds(patterns)

	return view, nil
}

func averageScore(grades []*domain.Grade, f func(domain.Scores) int) float64 {
	if len(grades) == 0 {
		return 0
	}
	sum := 0
	for _, g := range grades {
		sum += f(g.Scores)
	}
	return float64(sum) / float64(len(grades))
}

// topKinds orders recurring issue kinds most-frequent-first.
func topKinds(patterns map[domain.IssueKind]int) []string {
	kinds := make([]string, 0, len(patterns))
	for kind := range patterns {
		kinds = append(kinds, string(kind))
	}
	sort.Slice(kinds, func(i, j int) bool {
		a, b := patterns[domain.IssueKind(kinds[i])], patterns[domain.IssueKind(kinds[j])]
		if a != b {
			return a > b
		}
		return kinds[i] < kinds[j]
	})
	return kinds
}
