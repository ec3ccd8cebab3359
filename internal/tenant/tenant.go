// Package tenant implements the organization directory: CRUD plus the
// domain-to-tenant resolution and suspend/reactivate kill switch that gate
// every authenticated request.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("organization not found")
	ErrConflict     = errors.New("organization conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// Organization is an isolated customer account. Domain strings are stored
// lowercase; lookups normalize the query identically. The Active flag is the
// kill switch: false blocks every holder of a token referencing this tenant.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CNPJ      string    `json:"cnpj"`
	Domains   []string  `json:"domains"`
	Active    bool      `json:"active"`
	BillingID string    `json:"billing_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WhitelistsDomain reports whether the organization pre-authorizes the
// domain for self-service registration.
func (o *Organization) WhitelistsDomain(domain string) bool {
	domain = NormalizeDomain(domain)
	for _, d := range o.Domains {
		if d == domain {
			return true
		}
	}
	return false
}

// Update carries partial organization changes; nil fields are left untouched.
type Update struct {
	Name      *string
	CNPJ      *string
	Domains   []string
	BillingID *string
}

// Store describes persistence for organizations. FindByDomain matches the
// normalized domain against each whitelist regardless of active state and
// prefers an active match; the Directory applies visibility policy on top.
type Store interface {
	Create(ctx context.Context, org *Organization) error
	Update(ctx context.Context, org *Organization) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, id string) (*Organization, error)
	FindByDomain(ctx context.Context, domain string) (*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// Directory provides organization operations over a Store.
type Directory struct {
	store Store
	now   func() time.Time
}

// DirectoryOption configures Directory behavior.
type DirectoryOption func(*Directory)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) DirectoryOption {
	return func(d *Directory) {
		if fn != nil {
			d.now = fn
		}
	}
}

// NewDirectory constructs a Directory.
func NewDirectory(store Store, opts ...DirectoryOption) (*Directory, error) {
	if store == nil {
		return nil, errors.New("tenant store is required")
	}
	d := &Directory{store: store, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// CreateInput carries the fields required to register an organization.
type CreateInput struct {
	Name      string
	CNPJ      string
	Domains   []string
	BillingID string
}

// Create registers an organization. Domains are lowercased on write and the
// legal identifier must be unique (duplicate surfaces as ErrConflict).
func (d *Directory) Create(ctx context.Context, in CreateInput) (*Organization, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	cnpj, err := normalizeCNPJ(in.CNPJ)
	if err != nil {
		return nil, err
	}
	domains, err := normalizeDomains(in.Domains)
	if err != nil {
		return nil, err
	}
	org := &Organization{
		Name:      name,
		CNPJ:      cnpj,
		Domains:   domains,
		Active:    true,
		BillingID: strings.TrimSpace(in.BillingID),
	}
	if err := d.store.Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// Get returns the organization by id.
func (d *Directory) Get(ctx context.Context, id string) (*Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	return d.store.Find(ctx, id)
}

// List returns every organization.
func (d *Directory) List(ctx context.Context) ([]*Organization, error) {
	return d.store.List(ctx)
}

// UpdateOrganization applies partial changes. Domain lists are lowercased on
// write; a duplicate legal identifier surfaces as ErrConflict.
func (d *Directory) UpdateOrganization(ctx context.Context, id string, upd Update) (*Organization, error) {
	org, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
		}
		org.Name = name
	}
	if upd.CNPJ != nil {
		cnpj, err := normalizeCNPJ(*upd.CNPJ)
		if err != nil {
			return nil, err
		}
		org.CNPJ = cnpj
	}
	if upd.Domains != nil {
		domains, err := normalizeDomains(upd.Domains)
		if err != nil {
			return nil, err
		}
		org.Domains = domains
	}
	if upd.BillingID != nil {
		org.BillingID = strings.TrimSpace(*upd.BillingID)
	}
	org.UpdatedAt = d.now().UTC()
	if err := d.store.Update(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// Remove deletes the organization.
func (d *Directory) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	return d.store.Delete(ctx, id)
}

// FindByDomain resolves an active organization whitelisting the domain.
// Matching is case-insensitive and suspended organizations are invisible,
// so no new registration can land on a suspended tenant through this path.
func (d *Directory) FindByDomain(ctx context.Context, domain string) (*Organization, error) {
	org, err := d.FindByDomainAny(ctx, domain)
	if err != nil {
		return nil, err
	}
	if !org.Active {
		return nil, fmt.Errorf("%w: no active organization for domain", ErrNotFound)
	}
	return org, nil
}

// FindByDomainAny resolves the organization whitelisting the domain
// regardless of its active state. Registration uses it to distinguish an
// unauthorized domain from a suspended tenant.
func (d *Directory) FindByDomainAny(ctx context.Context, domain string) (*Organization, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidInput)
	}
	return d.store.FindByDomain(ctx, domain)
}

// Suspend flips the kill switch off. Suspending an already-suspended
// organization is a validation error so callers observe state transitions
// explicitly.
func (d *Directory) Suspend(ctx context.Context, id string) (*Organization, error) {
	org, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !org.Active {
		return nil, fmt.Errorf("%w: organization is already suspended", ErrInvalidInput)
	}
	if err := d.store.SetActive(ctx, org.ID, false); err != nil {
		return nil, err
	}
	org.Active = false
	org.UpdatedAt = d.now().UTC()
	return org, nil
}

// Reactivate flips the kill switch back on, with the same idempotency guard.
func (d *Directory) Reactivate(ctx context.Context, id string) (*Organization, error) {
	org, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if org.Active {
		return nil, fmt.Errorf("%w: organization is already active", ErrInvalidInput)
	}
	if err := d.store.SetActive(ctx, org.ID, true); err != nil {
		return nil, err
	}
	org.Active = true
	org.UpdatedAt = d.now().UTC()
	return org, nil
}

// NormalizeDomain lower-cases and trims a domain query so lookups match the
// stored form.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

func normalizeDomains(domains []string) ([]string, error) {
	seen := make(map[string]struct{}, len(domains))
	out := make([]string, 0, len(domains))
	for _, raw := range domains {
		domain := NormalizeDomain(raw)
		if domain == "" {
			continue
		}
		if !strings.Contains(domain, ".") || strings.ContainsAny(domain, " @/") {
			return nil, fmt.Errorf("%w: malformed domain %q", ErrInvalidInput, raw)
		}
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}
		out = append(out, domain)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one email domain is required", ErrInvalidInput)
	}
	return out, nil
}

func normalizeCNPJ(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(cleaned) != 14 {
		return "", fmt.Errorf("%w: CNPJ must contain 14 digits", ErrInvalidInput)
	}
	return cleaned, nil
}
