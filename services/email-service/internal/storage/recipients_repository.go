package storage

import (
	"context"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/db"
)

// RecipientsRepository is the local projection of registry users this
// service may send mail to. It is populated from consumed user events,
// never queried back from the registry.
type RecipientsRepository struct {
	pool *db.Pool
}

func NewRecipientsRepository(pool *db.Pool) *RecipientsRepository {
	return &RecipientsRepository{pool: pool}
}

func (r *RecipientsRepository) Upsert(ctx context.Context, email string, name string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_recipients (email, user_name)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET user_name = EXCLUDED.user_name
	`, email, name)
	return err
}

func (r *RecipientsRepository) Remove(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM email_recipients WHERE email = $1`, email)
	return err
}

func (r *RecipientsRepository) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM email_recipients WHERE email = $1)`, email,
	).Scan(&exists)
	return exists, err
}
