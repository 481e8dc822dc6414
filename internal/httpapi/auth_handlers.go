package httpapi

import (
	"errors"
	"net/http"
	"time"

	"authgrid.org/internal/audit"
	"authgrid.org/internal/auth"
	"authgrid.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func newTokenResponse(pair auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "bearer",
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
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

	pair, principal, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.LoginsTotal.WithLabelValues("invalid").Inc()
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		obs.LoginsTotal.WithLabelValues("error").Inc()
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	obs.LoginsTotal.WithLabelValues("ok").Inc()

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": principal.User.ID,
		"email":   principal.User.Email,
	})
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, principal, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		reason := rotateResult(err)
		obs.SessionRotationsTotal.WithLabelValues(reason).Inc()
		_ = audit.LogEvent(r.Context(), "auth.refresh.denied", map[string]any{
			"reason": reason,
		})
		if isSessionFailure(err) {
			// not_found, revoked and expired all collapse to one generic 401
			// at the wire so the response leaks nothing about session state.
			writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "refresh failed")
		return
	}
	obs.SessionRotationsTotal.WithLabelValues("ok").Inc()

	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": principal.User.ID,
	})
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	revoked := a.auth.Logout(r.Context(), req.RefreshToken)
	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"revoked": revoked,
	})
	// Logout on an unknown or already-terminal token is not an error.
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        principal.User,
		"permissions": principal.PermissionNames(),
	})
}

func isSessionFailure(err error) bool {
	return errors.Is(err, auth.ErrSessionNotFound) ||
		errors.Is(err, auth.ErrSessionRevoked) ||
		errors.Is(err, auth.ErrSessionExpired) ||
		errors.Is(err, auth.ErrInvalidCredentials)
}

func rotateResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, auth.ErrSessionRevoked):
		return "revoked"
	case errors.Is(err, auth.ErrSessionExpired):
		return "expired"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_user"
	default:
		return "error"
	}
}
