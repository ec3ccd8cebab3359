package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"documenta.app/internal/auth"
	"documenta.app/internal/tenant"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi", false},
		{"empty", "", "", true},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "", true},
		{"scheme only", "Bearer ", "", true},
		{"padded", "  Bearer abc  ", "abc", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractBearerToken(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractTokenPrefersCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/auth/validate", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cookie-token"})
	r.Header.Set("Authorization", "Bearer header-token")

	token, err := extractToken(r)
	if err != nil {
		t.Fatalf("extractToken: %v", err)
	}
	if token != "cookie-token" {
		t.Fatalf("cookie must win over the bearer header, got %q", token)
	}
}

func TestExtractTokenFallsBackToBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/auth/validate", nil)
	r.Header.Set("Authorization", "Bearer header-token")

	token, err := extractToken(r)
	if err != nil {
		t.Fatalf("extractToken: %v", err)
	}
	if token != "header-token" {
		t.Fatalf("got %q", token)
	}

	bare := httptest.NewRequest(http.MethodGet, "/v1/auth/validate", nil)
	if _, err := extractToken(bare); err == nil {
		t.Fatal("expected an error without credentials")
	}
}

func identityRequest(identity auth.Identity) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	return r.WithContext(auth.ContextWithIdentity(r.Context(), identity))
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guard := RequireRole(auth.RoleSystemAdmin)(next)

	// No identity at all.
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("401 must carry WWW-Authenticate")
	}

	// Wrong role.
	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, identityRequest(auth.Identity{
		User: &auth.User{ID: "u1", Role: auth.RoleUser},
	}))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: got %d", rec.Code)
	}

	// Matching role.
	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, identityRequest(auth.Identity{
		User: &auth.User{ID: "u1", Role: auth.RoleSystemAdmin},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("system admin: got %d", rec.Code)
	}
}

func TestRequireActiveTenant(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guard := RequireActiveTenant(next)

	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, identityRequest(auth.Identity{
		User:         &auth.User{ID: "u1", Role: auth.RoleUser},
		Organization: &tenant.Organization{ID: "org-1", Active: false},
	}))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("suspended tenant: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, identityRequest(auth.Identity{
		User:         &auth.User{ID: "u1", Role: auth.RoleUser},
		Organization: &tenant.Organization{ID: "org-1", Active: true},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("active tenant: got %d", rec.Code)
	}
}

func TestWithAuthRejectsWithoutCredentials(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/auth/password", map[string]string{
		"current_password": "x", "new_password": "y",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWithAuthRejectsGarbageToken(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/auth/password", map[string]string{
		"current_password": "x", "new_password": "y",
	}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "invalid token" {
		t.Fatalf("token failures must not reveal a cause, got %q", body.Error)
	}
}
