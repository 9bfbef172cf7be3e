package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/store"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil error", err: nil, want: nil},
		{name: "no rows", err: sql.ErrNoRows, want: store.ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("query: %w", sql.ErrNoRows), want: store.ErrNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: store.ErrDuplicate},
		{name: "foreign key violation", err: &pgconn.PgError{Code: "23503"}, want: store.ErrInvalidEntity},
		{name: "check violation", err: &pgconn.PgError{Code: "23514"}, want: store.ErrInvalidEntity},
		{name: "not null violation", err: &pgconn.PgError{Code: "23502"}, want: store.ErrInvalidEntity},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := MapError(tc.err)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}

	t.Run("unknown errors pass through", func(t *testing.T) {
		t.Parallel()

		original := errors.New("connection reset")
		assert.Equal(t, original, MapError(original))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestJSONHelpers(t *testing.T) {
	t.Parallel()

	t.Run("string list round trip", func(t *testing.T) {
		t.Parallel()

		data, err := marshalJSON([]string{"a", "b"})
		require.NoError(t, err)
		out, err := unmarshalStringList(data)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, out)
	})

	t.Run("empty column yields empty collections", func(t *testing.T) {
		t.Parallel()

		list, err := unmarshalStringList("")
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)

		issues, err := unmarshalIssues("")
		require.NoError(t, err)
		assert.NotNil(t, issues)
		assert.Empty(t, issues)

		patterns, err := unmarshalPatterns("")
		require.NoError(t, err)
		assert.NotNil(t, patterns)
		assert.Empty(t, patterns)
	})

	t.Run("json null yields empty collections", func(t *testing.T) {
		t.Parallel()

		list, err := unmarshalStringList("null")
		require.NoError(t, err)
		assert.NotNil(t, list)

		patterns, err := unmarshalPatterns("null")
		require.NoError(t, err)
		assert.NotNil(t, patterns)
	})

	t.Run("issues round trip", func(t *testing.T) {
		t.Parallel()

		issues := []domain.Issue{{Kind: domain.IssueGrammar, Original: "行くた", Corrected: "行った"}}
		data, err := marshalJSON(issues)
		require.NoError(t, err)
		out, err := unmarshalIssues(data)
		require.NoError(t, err)
		assert.Equal(t, issues, out)
	})

	t.Run("patterns round trip", func(t *testing.T) {
		t.Parallel()

		patterns := map[domain.IssueKind]int{domain.IssueVocab: 3}
		data, err := marshalJSON(patterns)
		require.NoError(t, err)
		out, err := unmarshalPatterns(data)
		require.NoError(t, err)
		assert.Equal(t, patterns, out)
	})

	t.Run("malformed data", func(t *testing.T) {
		t.Parallel()

		_, err := unmarshalStringList("{not json")
		assert.Error(t, err)
		_, err = unmarshalIssues("{not json")
		assert.Error(t, err)
		_, err = unmarshalPatterns("{not json")
		assert.Error(t, err)
	})
}
