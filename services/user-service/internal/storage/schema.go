package storage

import (
	"context"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/db"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGSERIAL PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		email      VARCHAR(255) NOT NULL UNIQUE,
		age        INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_created_at ON users (created_at)`,
}

func Migrate(ctx context.Context, pool *db.Pool) error {
	return db.Migrate(ctx, pool, schema)
}
