package httpapi

import (
	"net/http"
	"strings"
	"time"

	"LoginGuard/internal/auth"
	"LoginGuard/internal/domain"
	"LoginGuard/internal/metrics"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	fields := map[string]string{}
	req.Username = domain.NormalizeUsername(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if !domain.ValidUsername(req.Username) {
		fields["username"] = domain.UsernameRule
	}
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		fields["email"] = "must be a valid email address"
	}
	if len(req.Password) < 12 {
		fields["password"] = "must be at least 12 characters"
	}
	if len(fields) > 0 {
		WriteDomainError(w, domain.NewValidationError(fields))
		return
	}

	u, sessID, err := a.authSvc.Register(r.Context(), req.Email, req.Username, req.Password, a.clientAddr(r), r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	auth.SetSessionCookie(w, a.cookieCodec.EncodeSessionID(sessID), a.sessionTTL, a.cookieSecure)
	writeUser(w, http.StatusCreated, u)
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	addr := a.clientAddr(r)
	req.Login = strings.TrimSpace(req.Login)

	keys := []string{"ip:" + addr}
	if req.Login != "" {
		keys = append(keys, "login:"+strings.ToLower(req.Login))
	}
	if ok, wait := a.loginFlood.Allow(r.Context(), time.Now(), keys...); !ok {
		a.metrics.LoginAttempt(metrics.OutcomeRateLimited)
		w.Header().Set("Retry-After", retryAfterSeconds(wait))
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
		return
	}

	u, sessID, err := a.authSvc.Login(r.Context(), addr, req.Login, req.Password, r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	auth.SetSessionCookie(w, a.cookieCodec.EncodeSessionID(sessID), a.sessionTTL, a.cookieSecure)
	writeUser(w, http.StatusOK, u)
}

func (a *api) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	sessID, ok := CurrentSessionID(r.Context())
	if !ok || sessID == "" {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if err := a.authSvc.Logout(r.Context(), sessID); err != nil {
		a.logger.Warn("logout: revoke session failed", "err", err)
	}
	auth.ClearSessionCookie(w, a.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}
