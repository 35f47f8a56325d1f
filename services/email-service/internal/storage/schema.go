package storage

import (
	"context"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/db"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS email_recipients (
		email      TEXT PRIMARY KEY,
		user_name  TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS inbox_events (
		event_id     TEXT PRIMARY KEY,
		event_type   TEXT NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func Migrate(ctx context.Context, pool *db.Pool) error {
	return db.Migrate(ctx, pool, statements)
}
