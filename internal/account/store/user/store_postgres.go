package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"churnboard/internal/account"
	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/sentinel"
	"churnboard/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresUserStore persists users in PostgreSQL.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

const userColumns = `id, email, name, company, password_hash, default_model,
	default_threshold_type, last_login_at, last_login_device, created_at, updated_at`

func (s *PostgresUserStore) Create(ctx context.Context, u *account.User) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(u.ID),
		u.Email,
		u.Name,
		u.Company,
		u.PasswordHash,
		u.DefaultModel,
		u.DefaultThresholdType,
		nullTime(u),
		u.LastLoginDevice,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, userID id.UserID) (*account.User, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(userID))
	return scanUser(row)
}

func (s *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*account.User, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Update writes every mutable column. The email is immutable.
func (s *PostgresUserStore) Update(ctx context.Context, u *account.User) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE users SET name = $2, company = $3, password_hash = $4,
			default_model = $5, default_threshold_type = $6,
			last_login_at = $7, last_login_device = $8, updated_at = $9
		WHERE id = $1`,
		uuid.UUID(u.ID),
		u.Name,
		u.Company,
		u.PasswordHash,
		u.DefaultModel,
		u.DefaultThresholdType,
		nullTime(u),
		u.LastLoginDevice,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullTime(u *account.User) sql.NullTime {
	if u.LastLoginAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: u.LastLoginAt.UTC(), Valid: true}
}

func scanUser(row *sql.Row) (*account.User, error) {
	var (
		u         account.User
		userID    uuid.UUID
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&userID,
		&u.Email,
		&u.Name,
		&u.Company,
		&u.PasswordHash,
		&u.DefaultModel,
		&u.DefaultThresholdType,
		&lastLogin,
		&u.LastLoginDevice,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id.UserID(userID)
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLoginAt = &t
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
