package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/tskoli/kaiwa/internal/domain"
)

// marshalJSON serializes a list- or map-valued field for a text column.
// nil values are stored as empty JSON containers so scans never produce
// nil collections.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize field: %w", err)
	}
	return string(data), nil
}

func unmarshalStringList(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("failed to deserialize string list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func unmarshalIssues(data string) ([]domain.Issue, error) {
	if data == "" {
		return []domain.Issue{}, nil
	}
	var out []domain.Issue
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("failed to deserialize issues: %w", err)
	}
	if out == nil {
		out = []domain.Issue{}
	}
	return out, nil
}

func unmarshalPatterns(data string) (map[domain.IssueKind]int, error) {
	if data == "" {
		return map[domain.IssueKind]int{}, nil
	}
	var out map[domain.IssueKind]int
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("failed to deserialize error patterns: %w", err)
	}
	if out == nil {
		out = map[domain.IssueKind]int{}
	}
	return out, nil
}
