package httpapi

import (
	"errors"
	"net/http"
	"time"

	"documenta.app/internal/audit"
	"documenta.app/internal/auth"
	"documenta.app/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name                      string `json:"name"`
	Email                     string `json:"email"`
	Password                  string `json:"password"`
	AcceptDataProcessing      bool   `json:"accept_data_processing"`
	AcceptCrossBorderTransfer bool   `json:"accept_cross_border_transfer"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type sessionResponse struct {
	Token      string     `json:"token"`
	ExpiresAt  time.Time  `json:"expires_at"`
	User       *auth.User `json:"user"`
	Disclaimer string     `json:"disclaimer"`
	Message    string     `json:"message,omitempty"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.auth.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			obs.RecordLogin("unauthorized")
		} else {
			obs.RecordLogin("error")
		}
		handleServiceError(w, r, err)
		return
	}
	obs.RecordLogin("success")
	a.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:      session.Token,
		ExpiresAt:  session.ExpiresAt,
		User:       session.User,
		Disclaimer: session.Disclaimer,
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Name:                      req.Name,
		Email:                     req.Email,
		Password:                  req.Password,
		AcceptDataProcessing:      req.AcceptDataProcessing,
		AcceptCrossBorderTransfer: req.AcceptCrossBorderTransfer,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id":         session.User.ID,
		"email":           session.User.Email,
		"organization_id": session.User.OrganizationID,
	})
	a.setSessionCookie(w, session)
	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:      session.Token,
		ExpiresAt:  session.ExpiresAt,
		User:       session.User,
		Disclaimer: session.Disclaimer,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

type validateResponse struct {
	Valid bool       `json:"valid"`
	User  *auth.User `json:"user,omitempty"`
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
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
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, User: identity.User})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.auth.ChangePassword(r.Context(), identity.User.ID,
		req.CurrentPassword, req.NewPassword, requestMeta(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:      session.Token,
		ExpiresAt:  session.ExpiresAt,
		User:       session.User,
		Disclaimer: session.Disclaimer,
		Message:    "password updated",
	})
}

func (a *API) setSessionCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
