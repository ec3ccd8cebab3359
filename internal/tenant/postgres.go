package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"documenta.app/internal/ids"
)

const pgErrUniqueViolation = "23505"

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Domain whitelists are stored as
// a jsonb array of lowercase strings.
type PGStore struct {
	db *sql.DB
}

// NewPGStore constructs a PGStore over an open connection pool.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	domains, err := json.Marshal(org.Domains)
	if err != nil {
		return fmt.Errorf("marshal domains: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name, cnpj, domains, active, billing_id)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, org.ID, org.Name, org.CNPJ, domains, org.Active, org.BillingID)
	if err := row.Scan(&org.CreatedAt, &org.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: legal identifier already registered", ErrConflict)
		}
		return err
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, org *Organization) error {
	domains, err := json.Marshal(org.Domains)
	if err != nil {
		return fmt.Errorf("marshal domains: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		update organizations
		set name=$2, cnpj=$3, domains=$4, billing_id=$5, updated_at=now()
		where id=$1
	`, org.ID, org.Name, org.CNPJ, domains, org.BillingID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: legal identifier already registered", ErrConflict)
		}
		return err
	}
	return ensureAffected(res)
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from organizations where id=$1`, id)
	if err != nil {
		return err
	}
	return ensureAffected(res)
}

func (s *PGStore) Find(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, cnpj, domains, active, billing_id, created_at, updated_at
		from organizations where id=$1
	`, id)
	return scanOrganization(row)
}

func (s *PGStore) FindByDomain(ctx context.Context, domain string) (*Organization, error) {
	needle, err := json.Marshal([]string{domain})
	if err != nil {
		return nil, err
	}
	// An active whitelist match wins over a suspended one.
	row := s.db.QueryRowContext(ctx, `
		select id, name, cnpj, domains, active, billing_id, created_at, updated_at
		from organizations
		where domains @> $1::jsonb
		order by active desc, created_at asc
		limit 1
	`, needle)
	return scanOrganization(row)
}

func (s *PGStore) List(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, cnpj, domains, active, billing_id, created_at, updated_at
		from organizations order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (s *PGStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update organizations set active=$2, updated_at=now() where id=$1`, id, active)
	if err != nil {
		return err
	}
	return ensureAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*Organization, error) {
	var (
		org     Organization
		domains []byte
	)
	err := row.Scan(&org.ID, &org.Name, &org.CNPJ, &domains, &org.Active,
		&org.BillingID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(domains, &org.Domains); err != nil {
		return nil, fmt.Errorf("decode domains: %w", err)
	}
	return &org, nil
}

func ensureAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
