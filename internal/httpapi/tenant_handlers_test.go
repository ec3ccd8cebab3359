package httpapi

import (
	"net/http"
	"testing"

	"documenta.app/internal/auth"
	"documenta.app/internal/tenant"
)

func (f *apiFixture) adminCookie(t *testing.T) *http.Cookie {
	t.Helper()
	f.seedUser(t, "root@lages.sc.gov.br", "s3nh4-segura", func(u *auth.User) {
		u.Role = auth.RoleSystemAdmin
	})
	_, cookie := f.login(t, "root@lages.sc.gov.br", "s3nh4-segura")
	return cookie
}

func TestOrganizationEndpointsRequireSystemAdmin(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, "ana@lages.sc.gov.br", "s3nh4-segura", nil)
	_, userCookie := f.login(t, "ana@lages.sc.gov.br", "s3nh4-segura")

	// Anonymous.
	rec := f.do(t, http.MethodGet, "/v1/organizations", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: got %d", rec.Code)
	}

	// Authenticated but not system admin.
	rec = f.do(t, http.MethodGet, "/v1/organizations", nil, func(r *http.Request) {
		r.AddCookie(userCookie)
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("regular user list: got %d", rec.Code)
	}
}

func TestOrganizationCRUD(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.adminCookie(t)
	withAdmin := func(r *http.Request) { r.AddCookie(admin) }

	// Create.
	rec := f.do(t, http.MethodPost, "/v1/organizations", map[string]any{
		"name":    "Prefeitura de Blumenau",
		"cnpj":    "83.108.357/0001-15",
		"domains": []string{"Blumenau.SC.gov.br"},
	}, withAdmin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d: %s", rec.Code, rec.Body.String())
	}
	var created tenant.Organization
	decodeBody(t, rec, &created)
	if created.CNPJ != "83108357000115" {
		t.Fatalf("cnpj not normalized: %q", created.CNPJ)
	}
	if created.Domains[0] != "blumenau.sc.gov.br" {
		t.Fatalf("domains not lowercased: %v", created.Domains)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/organizations/"+created.ID {
		t.Fatalf("unexpected Location: %q", loc)
	}

	// Get.
	rec = f.do(t, http.MethodGet, "/v1/organizations/"+created.ID, nil, withAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d", rec.Code)
	}

	// List includes the seed org and the new one.
	rec = f.do(t, http.MethodGet, "/v1/organizations", nil, withAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got %d", rec.Code)
	}
	var list struct {
		Items []*tenant.Organization `json:"items"`
	}
	decodeBody(t, rec, &list)
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 organizations, got %d", len(list.Items))
	}

	// Update.
	rec = f.do(t, http.MethodPut, "/v1/organizations/"+created.ID, map[string]any{
		"name": "Município de Blumenau",
	}, withAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d: %s", rec.Code, rec.Body.String())
	}
	var updated tenant.Organization
	decodeBody(t, rec, &updated)
	if updated.Name != "Município de Blumenau" {
		t.Fatalf("name not updated: %q", updated.Name)
	}

	// Delete.
	rec = f.do(t, http.MethodDelete, "/v1/organizations/"+created.ID, nil, withAdmin)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/v1/organizations/"+created.ID, nil, withAdmin)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", rec.Code)
	}
}

func TestOrganizationCreateConflict(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.adminCookie(t)
	withAdmin := func(r *http.Request) { r.AddCookie(admin) }

	rec := f.do(t, http.MethodPost, "/v1/organizations", map[string]any{
		"name":    "Duplicata",
		"cnpj":    "82777301000190",
		"domains": []string{"duplicata.gov.br"},
	}, withAdmin)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate CNPJ: got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOrganizationSuspendReactivate(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.adminCookie(t)
	withAdmin := func(r *http.Request) { r.AddCookie(admin) }

	// A second tenant so the admin's own org stays live.
	rec := f.do(t, http.MethodPost, "/v1/organizations", map[string]any{
		"name":    "Prefeitura de Blumenau",
		"cnpj":    "83108357000115",
		"domains": []string{"blumenau.sc.gov.br"},
	}, withAdmin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rec.Code)
	}
	var org tenant.Organization
	decodeBody(t, rec, &org)

	f.seedUser(t, "beto@blumenau.sc.gov.br", "s3nh4-segura", func(u *auth.User) {
		u.OrganizationID = org.ID
	})
	_, betoCookie := f.login(t, "beto@blumenau.sc.gov.br", "s3nh4-segura")

	// Suspend.
	rec = f.do(t, http.MethodPost, "/v1/organizations/"+org.ID+"/suspend", nil, withAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("suspend: got %d: %s", rec.Code, rec.Body.String())
	}
	var suspended tenant.Organization
	decodeBody(t, rec, &suspended)
	if suspended.Active {
		t.Fatal("expected inactive organization")
	}

	// Outstanding token is now dead.
	rec = f.do(t, http.MethodGet, "/v1/auth/validate", nil, func(r *http.Request) {
		r.AddCookie(betoCookie)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("validate under suspension: got %d", rec.Code)
	}

	// New logins are blocked too.
	rec = f.do(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "beto@blumenau.sc.gov.br", "password": "s3nh4-segura",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("login under suspension: got %d", rec.Code)
	}

	// Double suspend is a client error.
	rec = f.do(t, http.MethodPost, "/v1/organizations/"+org.ID+"/suspend", nil, withAdmin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("double suspend: got %d", rec.Code)
	}

	// Reactivate restores access without re-issuing tokens.
	rec = f.do(t, http.MethodPost, "/v1/organizations/"+org.ID+"/reactivate", nil, withAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("reactivate: got %d: %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/v1/auth/validate", nil, func(r *http.Request) {
		r.AddCookie(betoCookie)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("validate after reactivation: got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOrganizationUnknownSubresource(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.adminCookie(t)

	rec := f.do(t, http.MethodPost, "/v1/organizations/org-lages/explode", nil, func(r *http.Request) {
		r.AddCookie(admin)
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown subresource: got %d", rec.Code)
	}
}
