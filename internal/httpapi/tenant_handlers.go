package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"documenta.app/internal/audit"
	"documenta.app/internal/tenant"
)

type createOrganizationRequest struct {
	Name      string   `json:"name"`
	CNPJ      string   `json:"cnpj"`
	Domains   []string `json:"domains"`
	BillingID string   `json:"billing_id"`
}

type updateOrganizationRequest struct {
	Name      *string  `json:"name"`
	CNPJ      *string  `json:"cnpj"`
	Domains   []string `json:"domains"`
	BillingID *string  `json:"billing_id"`
}

func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listOrganizations(w, r)
	case http.MethodPost:
		a.createOrganization(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOrganizationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/organizations/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	orgID := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getOrganization(w, r, orgID)
		case http.MethodPut:
			a.updateOrganization(w, r, orgID)
		case http.MethodDelete:
			a.deleteOrganization(w, r, orgID)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "suspend":
		a.setOrganizationActive(w, r, orgID, false)
	case len(parts) == 2 && parts[1] == "reactivate":
		a.setOrganizationActive(w, r, orgID, true)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.tenants.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []*tenant.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": orgs})
}

func (a *API) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.tenants.Create(r.Context(), tenant.CreateInput{
		Name:      req.Name,
		CNPJ:      req.CNPJ,
		Domains:   req.Domains,
		BillingID: req.BillingID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "tenant.create", map[string]any{
		"organization_id": org.ID,
		"name":            org.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s", org.ID))
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) getOrganization(w http.ResponseWriter, r *http.Request, orgID string) {
	org, err := a.tenants.Get(r.Context(), orgID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) updateOrganization(w http.ResponseWriter, r *http.Request, orgID string) {
	var req updateOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.tenants.UpdateOrganization(r.Context(), orgID, tenant.Update{
		Name:      req.Name,
		CNPJ:      req.CNPJ,
		Domains:   req.Domains,
		BillingID: req.BillingID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "tenant.update", map[string]any{
		"organization_id": org.ID,
	})
	writeJSON(w, http.StatusOK, org)
}

func (a *API) deleteOrganization(w http.ResponseWriter, r *http.Request, orgID string) {
	if err := a.tenants.Remove(r.Context(), orgID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "tenant.delete", map[string]any{
		"organization_id": orgID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setOrganizationActive(w http.ResponseWriter, r *http.Request, orgID string, active bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var (
		org   *tenant.Organization
		err   error
		event string
	)
	if active {
		org, err = a.tenants.Reactivate(r.Context(), orgID)
		event = "tenant.reactivate"
	} else {
		org, err = a.tenants.Suspend(r.Context(), orgID)
		event = "tenant.suspend"
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"organization_id": org.ID,
	})
	writeJSON(w, http.StatusOK, org)
}
