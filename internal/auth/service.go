package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"documenta.app/internal/tenant"
)

const minPasswordLength = 8

// Disclaimer is returned with every issued session. Documents produced by
// the platform are drafts and the notice must reach the client unchanged.
const Disclaimer = "Os documentos gerados pela plataforma têm caráter de minuta e não dispensam revisão jurídica antes da publicação oficial."

// TenantDirectory is the slice of the tenant directory this service needs:
// direct lookup for the per-request kill-switch check and domain resolution
// for registration.
type TenantDirectory interface {
	Get(ctx context.Context, id string) (*tenant.Organization, error)
	FindByDomainAny(ctx context.Context, domain string) (*tenant.Organization, error)
}

// Session is the result of a successful credential flow.
type Session struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	User       *User     `json:"user"`
	Disclaimer string    `json:"disclaimer"`
}

// Service orchestrates login, registration, token validation and password
// change. All dependencies are injected at construction; the service itself
// keeps no mutable state beyond the immutable secret registry.
type Service struct {
	users    UserStore
	tenants  TenantDirectory
	codec    *Codec
	registry *SecretRegistry
	audit    AuditSink
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth service.
func NewService(users UserStore, tenants TenantDirectory, codec *Codec, registry *SecretRegistry, sink AuditSink, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if tenants == nil {
		return nil, errors.New("tenant directory is required")
	}
	if codec == nil || registry == nil {
		return nil, errors.New("token codec and secret registry are required")
	}
	if sink == nil {
		sink = noopSink{}
	}
	svc := &Service{
		users:    users,
		tenants:  tenants,
		codec:    codec,
		registry: registry,
		audit:    sink,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Login authenticates credentials and issues a session. Unknown email and
// wrong password produce the same error and the same bcrypt cost, so neither
// timing nor message reveals which factor failed.
func (s *Service) Login(ctx context.Context, email, password string, meta RequestMeta) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			compareDummy(password)
			s.audit.LogLoginFailed(ctx, email, meta)
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, err
	}
	if !VerifyPassword(user.PasswordHash, password) {
		s.audit.LogLoginFailed(ctx, email, meta)
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	// Deactivated demo accounts keep read-only access; every other inactive
	// account is blocked outright.
	demoReadOnly := false
	if !user.Active {
		if user.Role != RoleDemo {
			return nil, fmt.Errorf("%w: account inactive", ErrUnauthorized)
		}
		demoReadOnly = true
	}
	if strings.TrimSpace(user.OrganizationID) == "" {
		return nil, fmt.Errorf("%w: no organization assigned", ErrUnauthorized)
	}
	org, err := s.tenants.Get(ctx, user.OrganizationID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return nil, fmt.Errorf("%w: organization suspended", ErrUnauthorized)
		}
		return nil, err
	}
	if !org.Active {
		return nil, fmt.Errorf("%w: organization suspended", ErrUnauthorized)
	}

	loginAt := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, loginAt); err != nil {
		return nil, err
	}
	user.LastLoginAt = &loginAt
	s.audit.LogLogin(ctx, user.ID, user.Email, meta)
	return s.issueSession(user, demoReadOnly)
}

// RegisterInput carries a self-service registration request.
type RegisterInput struct {
	Name                      string
	Email                     string
	Password                  string
	AcceptDataProcessing      bool
	AcceptCrossBorderTransfer bool
}

// Register creates a user, auto-assigning the tenant whose whitelist covers
// the caller's email domain.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if !in.AcceptDataProcessing {
		return nil, fmt.Errorf("%w: data processing consent is required", ErrInvalidInput)
	}
	if !in.AcceptCrossBorderTransfer {
		return nil, fmt.Errorf("%w: cross-border transfer consent is required", ErrInvalidInput)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(in.Email)
	domain, err := emailDomain(email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must have at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	org, err := s.tenants.FindByDomainAny(ctx, domain)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return nil, fmt.Errorf("%w: domain not authorized", ErrInvalidInput)
		}
		return nil, err
	}
	if !org.Active {
		return nil, fmt.Errorf("%w: organization suspended", ErrUnauthorized)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	consentAt := s.now().UTC()
	user := &User{
		OrganizationID:    org.ID,
		Email:             email,
		Name:              name,
		PasswordHash:      hash,
		Role:              RoleUser,
		Active:            true,
		DataConsentAt:     &consentAt,
		TransferConsentAt: &consentAt,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issueSession(user, false)
}

// ValidateToken verifies the token against the registry, then re-loads the
// subject and re-checks account and organization liveness: a signature alone
// never gates validity.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.codec.Verify(token, s.registry)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid or inactive session", ErrUnauthorized)
		}
		return nil, err
	}
	if !user.Active && !claims.DemoReadOnly {
		return nil, fmt.Errorf("%w: invalid or inactive session", ErrUnauthorized)
	}
	if strings.TrimSpace(user.OrganizationID) == "" {
		return nil, fmt.Errorf("%w: no organization assigned", ErrUnauthorized)
	}
	org, err := s.tenants.Get(ctx, user.OrganizationID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return nil, fmt.Errorf("%w: organization suspended", ErrUnauthorized)
		}
		return nil, err
	}
	if !org.Active {
		return nil, fmt.Errorf("%w: organization suspended", ErrUnauthorized)
	}
	return &Identity{User: user, Organization: org, ReadOnly: claims.DemoReadOnly}, nil
}

// ChangePassword rotates a user's password and clears the must-change flag,
// issuing a fresh session so the client reflects the new state without a
// forced re-login.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string, meta RequestMeta) (*Session, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid or inactive account", ErrUnauthorized)
		}
		return nil, err
	}
	if !user.Active {
		return nil, fmt.Errorf("%w: invalid or inactive account", ErrUnauthorized)
	}
	mandatory := user.MustChangePassword
	if !VerifyPassword(user.PasswordHash, current) {
		s.audit.LogPasswordChange(ctx, user.ID, mandatory, false, meta)
		return nil, fmt.Errorf("%w: incorrect current password", ErrUnauthorized)
	}
	if len(next) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must have at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if VerifyPassword(user.PasswordHash, next) {
		return nil, fmt.Errorf("%w: new password must differ from the current one", ErrInvalidInput)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, err
	}
	if user.MustChangePassword {
		if err := s.users.SetMustChangePassword(ctx, user.ID, false); err != nil {
			return nil, err
		}
	}
	user.PasswordHash = hash
	user.MustChangePassword = false
	s.audit.LogPasswordChange(ctx, user.ID, mandatory, true, meta)
	return s.issueSession(user, false)
}

func (s *Service) issueSession(user *User, demoReadOnly bool) (*Session, error) {
	token, expiresAt, err := s.codec.Issue(user, demoReadOnly, s.registry.Primary())
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:      token,
		ExpiresAt:  expiresAt,
		User:       user,
		Disclaimer: Disclaimer,
	}, nil
}

func emailDomain(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("%w: malformed email address", ErrInvalidInput)
	}
	domain := tenant.NormalizeDomain(email[at+1:])
	if domain == "" || !strings.Contains(domain, ".") {
		return "", fmt.Errorf("%w: malformed email domain", ErrInvalidInput)
	}
	return domain, nil
}

type noopSink struct{}

func (noopSink) LogLogin(context.Context, string, string, RequestMeta)              {}
func (noopSink) LogLoginFailed(context.Context, string, RequestMeta)                {}
func (noopSink) LogPasswordChange(context.Context, string, bool, bool, RequestMeta) {}
