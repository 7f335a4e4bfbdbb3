package httpapi

import (
	"net/http"
	"net/netip"
	"strings"

	"LoginGuard/internal/domain"
	"LoginGuard/internal/throttle"
)

type moduleResponse struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

func toModuleResponse(m domain.Module) moduleResponse {
	return moduleResponse{
		Key:         string(m.Key),
		Title:       m.Title,
		Description: m.Description,
		Enabled:     m.Enabled,
	}
}

func (a *api) handleModulesList(w http.ResponseWriter, r *http.Request) {
	mods, err := a.settingsSvc.Modules(r.Context())
	if err != nil {
		a.logger.Error("list modules failed", "err", err)
		WriteDomainError(w, err)
		return
	}

	out := make([]moduleResponse, 0, len(mods))
	for _, m := range mods {
		out = append(out, toModuleResponse(m))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"modules": out})
}

type moduleUpdateRequest struct {
	Enabled *bool `json:"enabled"`
}

func (a *api) handleModuleUpdate(w http.ResponseWriter, r *http.Request) {
	var req moduleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if req.Enabled == nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"enabled": "required"}))
		return
	}

	m, err := a.settingsSvc.SetModuleEnabled(r.Context(), domain.ModuleKey(r.PathValue("key")), *req.Enabled)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toModuleResponse(m))
}

type loginLimitsPayload struct {
	MaxAttempts     int    `json:"max_attempts"`
	LockoutDuration int    `json:"lockout_duration"`
	LockoutMessage  string `json:"lockout_message"`
}

func (a *api) handleLoginLimitsGet(w http.ResponseWriter, r *http.Request) {
	cfg := a.settingsSvc.LoginLimits(r.Context())
	WriteJSON(w, http.StatusOK, loginLimitsPayload{
		MaxAttempts:     cfg.MaxAttempts,
		LockoutDuration: cfg.LockoutMinutes,
		LockoutMessage:  cfg.LockoutMessage,
	})
}

func (a *api) handleLoginLimitsUpdate(w http.ResponseWriter, r *http.Request) {
	var req loginLimitsPayload
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	cfg, err := a.settingsSvc.SaveLoginLimits(r.Context(), throttle.Config{
		MaxAttempts:    req.MaxAttempts,
		LockoutMinutes: req.LockoutDuration,
		LockoutMessage: strings.TrimSpace(req.LockoutMessage),
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, loginLimitsPayload{
		MaxAttempts:     cfg.MaxAttempts,
		LockoutDuration: cfg.LockoutMinutes,
		LockoutMessage:  cfg.LockoutMessage,
	})
}

func (a *api) handleLockoutDelete(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimSpace(r.PathValue("addr"))
	parsed, err := netip.ParseAddr(addr)
	if err != nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"addr": "must be an IP address"}))
		return
	}
	a.unlockAddress(w, r, parsed.String())
}

// handleLockoutDeleteRaw clears the record for a client key taken verbatim
// from ?addr=. An empty value is the shared bucket used when a request has
// no resolvable address.
func (a *api) handleLockoutDeleteRaw(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("addr") {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"addr": "is required (empty for the shared bucket)"}))
		return
	}
	a.unlockAddress(w, r, canonicalAddr(strings.TrimSpace(q.Get("addr"))))
}

func (a *api) unlockAddress(w http.ResponseWriter, r *http.Request, addr string) {
	if err := a.settingsSvc.UnlockAddress(r.Context(), addr); err != nil {
		a.logger.Error("unlock address failed", "err", err)
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
