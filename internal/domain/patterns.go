package domain

// RecurringPatternThreshold is the minimum number of occurrences an issue
// kind needs within a grade window to count as a recurring weakness.
const RecurringPatternThreshold = 2

// AggregateIssuePatterns scans the issue lists of a grade window and counts
// occurrences per issue kind, keeping only kinds seen at least
// RecurringPatternThreshold times. The result replaces, never merges with,
// a learner's stored recurring-pattern map. Deterministic for a given
// window.
func AggregateIssuePatterns(grades []*Grade) map[IssueKind]int {
	counts := make(map[IssueKind]int)
	for _, grade := range grades {
		for _, issue := range grade.Issues {
			counts[issue.Kind]++
		}
	}

	patterns := make(map[IssueKind]int)
	for kind, count := range counts {
		if count >= RecurringPatternThreshold {
			patterns[kind] = count
		}
	}
	return patterns
}
