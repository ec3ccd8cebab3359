package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"documenta.app/internal/auth"
	"documenta.app/internal/tenant"
)

type memUsers struct {
	mu     sync.Mutex
	byID   map[string]*auth.User
	nextID int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]*auth.User)}
}

func (s *memUsers) add(u *auth.User) *auth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		s.nextID++
		u.ID = fmt.Sprintf("user-%d", s.nextID)
	}
	s.byID[u.ID] = u
	return u
}

func (s *memUsers) Create(ctx context.Context, u *auth.User) error {
	s.mu.Lock()
	for _, existing := range s.byID {
		if existing.Email == u.Email {
			s.mu.Unlock()
			return fmt.Errorf("%w: email already registered", auth.ErrConflict)
		}
	}
	s.mu.Unlock()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.add(u)
	return nil
}

func (s *memUsers) FindByID(ctx context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *memUsers) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (s *memUsers) SetMustChangePassword(ctx context.Context, userID string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.MustChangePassword = value
	return nil
}

type memOrgs struct {
	mu     sync.Mutex
	byID   map[string]*tenant.Organization
	nextID int
}

func newMemOrgs() *memOrgs {
	return &memOrgs{byID: make(map[string]*tenant.Organization)}
}

func (s *memOrgs) Create(ctx context.Context, org *tenant.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.CNPJ == org.CNPJ {
			return fmt.Errorf("%w: legal identifier already registered", tenant.ErrConflict)
		}
	}
	s.nextID++
	if org.ID == "" {
		org.ID = fmt.Sprintf("org-%d", s.nextID)
	}
	org.CreatedAt = time.Now().UTC()
	org.UpdatedAt = org.CreatedAt
	cp := *org
	s.byID[org.ID] = &cp
	return nil
}

func (s *memOrgs) Update(ctx context.Context, org *tenant.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[org.ID]; !ok {
		return tenant.ErrNotFound
	}
	cp := *org
	s.byID[org.ID] = &cp
	return nil
}

func (s *memOrgs) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return tenant.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *memOrgs) Find(ctx context.Context, id string) (*tenant.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.byID[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *memOrgs) FindByDomain(ctx context.Context, domain string) (*tenant.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, org := range s.byID {
		if org.WhitelistsDomain(domain) {
			cp := *org
			return &cp, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (s *memOrgs) List(ctx context.Context) ([]*tenant.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*tenant.Organization, 0, len(s.byID))
	for _, org := range s.byID {
		cp := *org
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memOrgs) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.byID[id]
	if !ok {
		return tenant.ErrNotFound
	}
	org.Active = active
	return nil
}

type apiFixture struct {
	api     *API
	handler http.Handler
	users   *memUsers
	orgs    *memOrgs
	dir     *tenant.Directory
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	users := newMemUsers()
	orgs := newMemOrgs()

	if err := orgs.Create(context.Background(), &tenant.Organization{
		ID:      "org-lages",
		Name:    "Prefeitura de Lages",
		CNPJ:    "82777301000190",
		Domains: []string{"lages.sc.gov.br"},
		Active:  true,
	}); err != nil {
		t.Fatalf("seed organization: %v", err)
	}

	dir, err := tenant.NewDirectory(orgs)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	reg, err := auth.NewSecretRegistry("primary-secret-0123456789", "")
	if err != nil {
		t.Fatalf("NewSecretRegistry: %v", err)
	}
	svc, err := auth.NewService(users, dir, auth.NewCodec("documenta"), reg, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	api := New(ReadyProbe{}, svc, dir, Options{
		Version:    "test",
		RateBurst:  1000,
		RatePerSec: 1000,
	})
	return &apiFixture{
		api:     api,
		handler: api.Handler(),
		users:   users,
		orgs:    orgs,
		dir:     dir,
	}
}

func (f *apiFixture) seedUser(t *testing.T, email, password string, mutate func(*auth.User)) *auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &auth.User{
		OrganizationID: "org-lages",
		Email:          email,
		Name:           "Seeded User",
		PasswordHash:   hash,
		Role:           auth.RoleUser,
		Active:         true,
	}
	if mutate != nil {
		mutate(u)
	}
	return f.users.add(u)
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) login(t *testing.T, email, password string) (string, *http.Cookie) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return resp.Token, c
		}
	}
	t.Fatal("login did not set the session cookie")
	return "", nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}
