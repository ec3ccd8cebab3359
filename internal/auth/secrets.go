package auth

import (
	"errors"
	"strings"
)

// SecretRegistry holds the ordered list of valid signing secrets: the primary
// first, an optional legacy secret second. It is loaded once from
// configuration and never mutated, which is what makes dual-key rotation a
// deploy-time procedure rather than a runtime API.
type SecretRegistry struct {
	secrets [][]byte
}

// NewSecretRegistry builds a registry from the configured secrets. The
// primary is required; the legacy secret is present only during a rotation
// window and may be empty.
func NewSecretRegistry(primary, legacy string) (*SecretRegistry, error) {
	primary = strings.TrimSpace(primary)
	legacy = strings.TrimSpace(legacy)
	if primary == "" {
		return nil, errors.New("primary signing secret is required")
	}
	if legacy == primary {
		legacy = ""
	}
	secrets := [][]byte{[]byte(primary)}
	if legacy != "" {
		secrets = append(secrets, []byte(legacy))
	}
	return &SecretRegistry{secrets: secrets}, nil
}

// Primary returns the secret used to sign new tokens.
func (r *SecretRegistry) Primary() []byte {
	return r.secrets[0]
}

// Secrets returns the verification order: primary first, then legacy.
func (r *SecretRegistry) Secrets() [][]byte {
	return r.secrets
}
