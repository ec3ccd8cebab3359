package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 8 * time.Hour

// Claims is the signed session payload. It is immutable once issued; the
// only server-side counterpart is the secret registry used to verify it.
type Claims struct {
	Email              string `json:"email"`
	Name               string `json:"name"`
	Role               Role   `json:"role"`
	OrganizationID     string `json:"org_id"`
	MustChangePassword bool   `json:"must_change_password"`
	// DemoReadOnly marks the deactivated-demo carve-out asserted at issue
	// time. Downstream layers treat it as a capability flag only.
	DemoReadOnly bool `json:"demo_read_only,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with HS256.
type Codec struct {
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithTTL overrides the default token lifetime.
func WithTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec for the given issuer claim.
func NewCodec(issuer string, opts ...CodecOption) *Codec {
	c := &Codec{
		issuer: strings.TrimSpace(issuer),
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a session token for the user. The demoReadOnly flag is stamped
// into the claims when a deactivated demo account is allowed through.
func (c *Codec) Issue(user *User, demoReadOnly bool, secret []byte) (string, time.Time, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	if len(secret) == 0 {
		return "", time.Time{}, errors.New("signing secret is required")
	}
	now := c.now().UTC()
	expiresAt := now.Add(c.ttl)
	claims := Claims{
		Email:              user.Email,
		Name:               user.Name,
		Role:               user.Role,
		OrganizationID:     user.OrganizationID,
		MustChangePassword: user.MustChangePassword,
		DemoReadOnly:       demoReadOnly,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify tries each registered secret in order until one validates both
// signature and claims. Order only matters for efficiency: the primary is
// expected to match the overwhelming majority of live tokens, while the
// legacy branch keeps tokens signed before a rotation valid until their
// natural expiry. Every failure collapses into ErrInvalidToken.
func (c *Codec) Verify(token string, registry *SecretRegistry) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" || registry == nil {
		return nil, ErrInvalidToken
	}
	for _, secret := range registry.Secrets() {
		claims, err := c.verifyWith(token, secret)
		if err == nil {
			return claims, nil
		}
	}
	return nil, ErrInvalidToken
}

func (c *Codec) verifyWith(token string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := c.validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) validateClaims(claims *Claims) error {
	if claims.Issuer != c.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := c.now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
