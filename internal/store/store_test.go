package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebindPostgresPlaceholders(t *testing.T) {
	assert.Equal(t,
		"SELECT * FROM trades WHERE taker = $1 AND executed_at >= $2",
		rebindPostgresPlaceholders("SELECT * FROM trades WHERE taker = ? AND executed_at >= ?"),
	)

	// Question marks inside string literals are left alone.
	assert.Equal(t,
		"SELECT '?' , $1 FROM offers",
		rebindPostgresPlaceholders("SELECT '?' , ? FROM offers"),
	)

	// Escaped quotes keep the literal open.
	assert.Equal(t,
		"SELECT 'it''s ?' , $1",
		rebindPostgresPlaceholders("SELECT 'it''s ?' , ?"),
	)

	assert.Equal(t, "SELECT 1", rebindPostgresPlaceholders("SELECT 1"))
}

func TestNormalizePagination(t *testing.T) {
	limit, offset := normalizePagination(0, -5)
	assert.Equal(t, defaultPageLimit, limit)
	assert.Zero(t, offset)

	limit, offset = normalizePagination(10_000, 30)
	assert.Equal(t, maxPageLimit, limit)
	assert.Equal(t, 30, offset)

	limit, _ = normalizePagination(25, 0)
	assert.Equal(t, 25, limit)
}
