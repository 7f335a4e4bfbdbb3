package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"LoginGuard/internal/auth"
	"LoginGuard/internal/metrics"
	"LoginGuard/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth       *service.AuthService
	Settings   *service.SettingsService
	Metrics    *metrics.Metrics
	LoginFlood *FloodLimiter

	CookieCodec  auth.CookieCodec
	CookieSecure bool
	SessionTTL   time.Duration
	AdminEmails  []string
	TrustProxy   bool
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	adminSet := make(map[string]bool, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		e = strings.TrimSpace(strings.ToLower(e))
		if e != "" {
			adminSet[e] = true
		}
	}

	api := &api{
		logger:       logger,
		isProd:       opts.IsProd,
		dbPing:       opts.DBPing,
		authSvc:      opts.Auth,
		settingsSvc:  opts.Settings,
		metrics:      opts.Metrics,
		loginFlood:   opts.LoginFlood,
		cookieCodec:  opts.CookieCodec,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
		adminEmails:  adminSet,
		trustProxy:   opts.TrustProxy,
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)
	if opts.Metrics != nil {
		publicMux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	if api.authSvc == nil {
		apiMux.HandleFunc("POST /v1/auth/register", handleNotImplemented)
		apiMux.HandleFunc("POST /v1/auth/login", handleNotImplemented)
		apiMux.HandleFunc("POST /v1/auth/logout", handleNotImplemented)
		apiMux.HandleFunc("GET /v1/users/me", handleNotImplemented)
	} else {
		apiMux.HandleFunc("POST /v1/auth/register", api.handleAuthRegister)
		apiMux.HandleFunc("POST /v1/auth/login", api.handleAuthLogin)
		apiMux.HandleFunc("POST /v1/auth/logout", api.requireAuth(api.handleAuthLogout))
		apiMux.HandleFunc("GET /v1/users/me", api.requireAuth(api.handleUsersMe))

		if api.settingsSvc != nil && len(adminSet) > 0 {
			apiMux.HandleFunc("GET /v1/admin/modules", api.requireAdmin(api.handleModulesList))
			apiMux.HandleFunc("PUT /v1/admin/modules/{key}", api.requireAdmin(api.handleModuleUpdate))
			apiMux.HandleFunc("GET /v1/admin/login-limits", api.requireAdmin(api.handleLoginLimitsGet))
			apiMux.HandleFunc("PUT /v1/admin/login-limits", api.requireAdmin(api.handleLoginLimitsUpdate))
			apiMux.HandleFunc("DELETE /v1/admin/lockouts", api.requireAdmin(api.handleLockoutDeleteRaw))
			apiMux.HandleFunc("DELETE /v1/admin/lockouts/{addr}", api.requireAdmin(api.handleLockoutDelete))
		} else {
			logger.Info("admin api disabled", "admin_emails", len(adminSet), "settings", api.settingsSvc != nil)
		}
	}

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux := publicMux
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			mux = apiMux
		}
		// Handler only resolves the pattern; ServeHTTP populates path values.
		var h http.Handler = mux
		_, pattern := mux.Handler(r)
		if pattern == "" && mux == apiMux {
			h = http.HandlerFunc(handleV1NotFound)
		}
		api.instrument(pattern, h).ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc     *service.AuthService
	settingsSvc *service.SettingsService
	metrics     *metrics.Metrics
	loginFlood  *FloodLimiter

	cookieCodec  auth.CookieCodec
	cookieSecure bool
	sessionTTL   time.Duration
	adminEmails  map[string]bool
	trustProxy   bool
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
