package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"documenta.app/internal/auth"
	"documenta.app/internal/obs"
	"documenta.app/internal/tenant"
)

// ReadyProbe reports readiness, pinging the database when one is wired.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the API surface configuration.
type Options struct {
	Version      string
	SecureCookie bool
	RateBurst    int
	RatePerSec   int
}

// API is the HTTP layer over the auth service and tenant directory.
type API struct {
	mux          *http.ServeMux
	readyProbe   ReadyProbe
	auth         *auth.Service
	tenants      *tenant.Directory
	version      string
	secureCookie bool
	rateBurst    int
	ratePerSec   int
}

// New wires routes over the injected services.
func New(rp ReadyProbe, authSvc *auth.Service, tenants *tenant.Directory, opts Options) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		auth:         authSvc,
		tenants:      tenants,
		version:      opts.Version,
		secureCookie: opts.SecureCookie,
		rateBurst:    opts.RateBurst,
		ratePerSec:   opts.RatePerSec,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/validate", a.handleValidate)
	a.mux.HandleFunc("/v1/auth/password", a.handleChangePassword)

	orgAdmin := RequireRole(auth.RoleSystemAdmin)
	a.mux.Handle("/v1/organizations", orgAdmin(http.HandlerFunc(a.handleOrganizations)))
	a.mux.Handle("/v1/organizations/", orgAdmin(http.HandlerFunc(a.handleOrganizationResource)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "documenta-auth",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "documenta-auth",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
