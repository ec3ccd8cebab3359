package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"documenta.app/internal/auth"
)

const (
	// SessionCookie is the well-known httpOnly cookie carrying the session
	// token. Preferred over the bearer header because in-page script cannot
	// read it.
	SessionCookie = "documenta_session"

	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/register",
	"/v1/auth/logout",
	"/v1/auth/validate",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// extractToken pulls the raw session token from the request: cookie first,
// bearer header as a fallback for non-browser clients. Absence is reported
// distinctly for logging, but the 401 shape is identical either way.
func extractToken(r *http.Request) (string, error) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if token := strings.TrimSpace(c.Value); token != "" {
			return token, nil
		}
	}
	return extractBearerToken(r.Header.Get(authHeader))
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing credentials")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing credentials")
	}
	return token, nil
}

// withAuth authenticates every non-public request: extract token, verify it
// against the secret registry, re-load the user and attach the identity
// (including the organization record) to the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractToken(r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		identity, err := a.auth.ValidateToken(r.Context(), token)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		ctx := auth.ContextWithIdentity(r.Context(), *identity)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits only identities holding one of the listed roles.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if identity.User.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusForbidden, "insufficient role")
		})
	}
}

// RequireActiveTenant is the authorization-layer kill switch: it reads the
// organization record the authenticator attached (no second lookup) and
// rejects with 403 when the tenant is suspended.
func RequireActiveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		if identity.Organization == nil || !identity.Organization.Active {
			writeError(w, r, http.StatusForbidden, "organization suspended")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
