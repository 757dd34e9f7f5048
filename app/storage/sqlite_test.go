package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	e "nuclight.org/tg-wordpress-bot/pkg/entities"
)

func newTestJournal(t *testing.T) *SQLite {
	t.Helper()

	db, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "journal.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestSaveAndListOutcomes(t *testing.T) {
	db := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, db.SaveOutcome(ctx, e.PublishRecord{
		CorrelationID: "c1",
		GroupID:       "G1",
		MessageID:     10,
		Title:         "Hello",
		Outcome:       e.PublishOutcome{Succeeded: true, ArticleURL: "https://site.example/?p=42"},
	}))
	require.NoError(t, db.SaveOutcome(ctx, e.PublishRecord{
		CorrelationID: "c2",
		MessageID:     11,
		Title:         "Broken",
		Outcome:       e.PublishOutcome{FailureDetail: "unexpected status code: 403"},
	}))

	records, err := db.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// newest first
	assert.Equal(t, "c2", records[0].CorrelationID)
	assert.False(t, records[0].Outcome.Succeeded)
	assert.Equal(t, "unexpected status code: 403", records[0].Outcome.FailureDetail)

	assert.Equal(t, "c1", records[1].CorrelationID)
	assert.Equal(t, "G1", records[1].GroupID)
	assert.True(t, records[1].Outcome.Succeeded)
	assert.Equal(t, "https://site.example/?p=42", records[1].Outcome.ArticleURL)
}

func TestListRecentLimit(t *testing.T) {
	db := newTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, db.SaveOutcome(ctx, e.PublishRecord{
			CorrelationID: "c",
			MessageID:     i,
			Title:         "t",
			Outcome:       e.PublishOutcome{Succeeded: true},
		}))
	}

	records, err := db.ListRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestListRecentEmpty(t *testing.T) {
	db := newTestJournal(t)

	records, err := db.ListRecent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}
