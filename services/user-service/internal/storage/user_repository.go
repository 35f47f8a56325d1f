package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/libs/db"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/model"
	"github.com/ArtYakk/aston-yakkonen-homework-2.5-kafka/services/user-service/internal/query"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = "id, name, email, age, created_at, updated_at"

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Insert persists a new user; id and both timestamps are assigned by
// the store. A duplicate email surfaces as a unique violation.
func (r *UserRepository) Insert(ctx context.Context, name, email string, age int) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, age)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns+`
	`, name, email, age).Scan(&u.ID, &u.Name, &u.Email, &u.Age, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Age, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Update writes the full row back and refreshes updated_at in the
// store. Partial-update semantics are resolved by the caller before the
// row gets here.
func (r *UserRepository) Update(ctx context.Context, u model.User) (model.User, error) {
	var out model.User
	err := r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = $2, email = $3, age = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, u.ID, u.Name, u.Email, u.Age).Scan(&out.ID, &out.Name, &out.Email, &out.Age, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	return out, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// List runs the compiled predicate with sorting and paging, returning
// the page plus the total match count.
func (r *UserRepository) List(ctx context.Context, f query.Filter, p query.Page) ([]model.User, int, error) {
	pred := f.Predicate()

	var total int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`+pred.Where(), pred.Args()...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`SELECT %s FROM users%s%s LIMIT $%d OFFSET $%d`,
		userColumns, pred.Where(), p.OrderBy(), pred.NextArg(), pred.NextArg()+1)
	args := append(pred.Args(), p.Limit(), p.Offset())

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Age, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return users, total, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports a Postgres unique-constraint failure
// (SQLSTATE 23505), the store half of the email-uniqueness invariant.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
