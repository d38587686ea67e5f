package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"user-service/internal/model"
)

const (
	pgUniqueViolation   = "23505"
	pgInvalidTextRepr   = "22P02"
	emailUniqueIndex    = "users_email_lower_idx"
	usernameUniqueIndex = "users_username_lower_idx"
	userColumns         = `id::text, first_name, last_name, email, username, COALESCE(password_hash, ''), role, created_at, updated_at`
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, first_name, last_name, email, username, password_hash, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		 RETURNING `+userColumns,
		u.ID, u.FirstName, u.LastName, u.Email, u.Username, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)

	created, err := scanUser(row)
	if err != nil {
		return model.User{}, mapWriteError("create user", err, u.UsernameFollowsEmail())
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.scanOne("find user by id", row)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, strings.TrimSpace(username))
	return r.scanOne("find user by username", row)
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w: %w", model.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w: %w", model.ErrStoreUnavailable, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w: %w", model.ErrStoreUnavailable, err)
	}
	return users, nil
}

// Update is a single UPDATE ... RETURNING, so a concurrent delete either
// happens before (not found) or after (update lost with the row). The
// right-hand side of SET sees the old row, which is how a defaulted username
// is recognised and moved to the new email.
func (r *UserRepository) Update(ctx context.Context, u model.User) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET
		        first_name = $2,
		        last_name = $3,
		        email = $4,
		        username = CASE
		            WHEN $5 <> '' THEN $5
		            WHEN lower(username) = lower(email) THEN $4
		            ELSE username
		        END,
		        password_hash = COALESCE(NULLIF($6, ''), password_hash),
		        role = $7,
		        updated_at = $8
		 WHERE id = $1
		 RETURNING `+userColumns,
		u.ID, u.FirstName, u.LastName, u.Email, u.Username, u.PasswordHash, u.Role, u.UpdatedAt)

	updated, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) || isPgCode(err, pgInvalidTextRepr) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, mapWriteError("update user", err, u.Username == "" || u.UsernameFollowsEmail())
	}
	return updated, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if isPgCode(err, pgInvalidTextRepr) {
		return model.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("delete user: %w: %w", model.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w: %w", model.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *UserRepository) scanOne(op string, row pgx.Row) (model.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) || isPgCode(err, pgInvalidTextRepr) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Username,
		&u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// mapWriteError translates unique violations. When the username is derived
// from the email, a clash on the username index is a clash on the email.
func mapWriteError(op string, err error, usernameFromEmail bool) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case emailUniqueIndex:
			return model.ErrDuplicateEmail
		case usernameUniqueIndex:
			if usernameFromEmail {
				return model.ErrDuplicateEmail
			}
			return model.ErrDuplicateUsername
		}
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
