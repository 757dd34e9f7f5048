package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	e "nuclight.org/tg-wordpress-bot/pkg/entities"
)

// SQLite is an append-only journal of publish attempts. Nothing is ever
// replayed from it, it exists for the operator and the /status command.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, filePath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite3 database: %w", err)
	}

	client := &SQLite{
		db: db,
	}

	err = client.init(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing sqlite3 database: %w", err)
	}

	return client, nil
}

func (c *SQLite) Close() error {
	return c.db.Close()
}

func (c *SQLite) SaveOutcome(ctx context.Context, rec e.PublishRecord) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO publishes (
			correlation_id, group_id, message_id, title, succeeded, article_url, failure, created_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP
		)`,
		rec.CorrelationID,
		rec.GroupID,
		rec.MessageID,
		rec.Title,
		rec.Outcome.Succeeded,
		rec.Outcome.ArticleURL,
		rec.Outcome.FailureDetail,
	)
	if err != nil {
		return fmt.Errorf("inserting publish record: %w", err)
	}

	return nil
}

func (c *SQLite) ListRecent(ctx context.Context, limit int) ([]e.PublishRecord, error) {
	rows, err := c.db.QueryContext(
		ctx,
		`SELECT correlation_id, group_id, message_id, title, succeeded, article_url, failure
			FROM publishes
			ORDER BY id DESC
			LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying publish records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []e.PublishRecord
	for rows.Next() {
		var rec e.PublishRecord
		err = rows.Scan(
			&rec.CorrelationID,
			&rec.GroupID,
			&rec.MessageID,
			&rec.Title,
			&rec.Outcome.Succeeded,
			&rec.Outcome.ArticleURL,
			&rec.Outcome.FailureDetail,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning publish record: %w", err)
		}

		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating publish records: %w", err)
	}

	return records, nil
}

//go:embed init.sql
var initQuery string

func (c *SQLite) init(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, initQuery)
	return err
}
