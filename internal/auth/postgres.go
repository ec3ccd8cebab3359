package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"documenta.app/internal/ids"
)

const pgErrUniqueViolation = "23505"

var _ UserStore = (*PGUserStore)(nil)

// PGUserStore implements UserStore using PostgreSQL.
type PGUserStore struct {
	db *sql.DB
}

// NewPGUserStore constructs a PGUserStore over an open connection pool.
func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

const userColumns = `id, organization_id, email, name, password_hash, role, active,
	must_change_password, last_login_at, data_consent_at, transfer_consent_at,
	created_at, updated_at`

func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, organization_id, email, name, password_hash, role, active,
			must_change_password, data_consent_at, transfer_consent_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning created_at, updated_at
	`, u.ID, u.OrganizationID, u.Email, u.Name, u.PasswordHash, string(u.Role),
		u.Active, u.MustChangePassword, u.DataConsentAt, u.TransferConsentAt)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return err
	}
	return nil
}

func (s *PGUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (s *PGUserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`, userID, passwordHash)
	if err != nil {
		return err
	}
	return ensureUserAffected(res)
}

func (s *PGUserStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set last_login_at=$2, updated_at=now() where id=$1`, userID, at)
	if err != nil {
		return err
	}
	return ensureUserAffected(res)
}

func (s *PGUserStore) SetMustChangePassword(ctx context.Context, userID string, value bool) error {
	res, err := s.db.ExecContext(ctx,
		`update users set must_change_password=$2, updated_at=now() where id=$1`, userID, value)
	if err != nil {
		return err
	}
	return ensureUserAffected(res)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.Name, &u.PasswordHash,
		&role, &u.Active, &u.MustChangePassword, &u.LastLoginAt,
		&u.DataConsentAt, &u.TransferConsentAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func ensureUserAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
