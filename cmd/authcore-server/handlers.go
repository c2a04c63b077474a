package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/middleware"
)

const (
	refreshCookie = "refresh_token"
	loginScope    = "login"
)

type server struct {
	engine *authcore.Engine
	logger *slog.Logger
	// throttle limits failed logins per client address. Nil disables it.
	throttle *rate.Limiter
}

// routes mounts the public API on mux. metrics may be nil.
func (s *server) routes(metrics http.Handler, metricsPath string) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/login", s.login)
	mux.HandleFunc("POST /v1/refresh", s.refresh)
	mux.HandleFunc("POST /v1/logout", s.logout)
	mux.HandleFunc("GET /healthz", s.health)

	guard := middleware.Guard(s.engine)
	mux.Handle("POST /v1/logout-all", guard(http.HandlerFunc(s.logoutAll)))
	mux.Handle("GET /v1/me", guard(http.HandlerFunc(s.me)))

	readReports, err := middleware.RequirePermissions(s.engine, "reports:read")
	if err != nil {
		return nil, err
	}
	mux.Handle("GET /v1/reports", guard(readReports(http.HandlerFunc(s.reports))))

	adminOnly := middleware.RequireRole("admin")
	mux.Handle("GET /v1/admin/security", guard(adminOnly(http.HandlerFunc(s.health))))

	if metrics != nil {
		mux.Handle("GET "+metricsPath, metrics)
	}
	return mux, nil
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	ip := clientIP(r)
	if s.throttled(w, r, ip) {
		return
	}

	res, err := s.engine.Authenticate(requestContext(r), body.Email, body.Password)
	if err != nil {
		s.recordFailure(r, ip, err)
		s.fail(w, err)
		return
	}
	setRefreshCookie(w, r, res.RefreshToken, res.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, res)
}

// throttled writes 429 when ip is over its failed-login budget. A Redis
// outage lets the request through. Successful logins never reset the budget;
// the window expires on its own.
func (s *server) throttled(w http.ResponseWriter, r *http.Request, ip string) bool {
	if s.throttle == nil {
		return false
	}
	err := s.throttle.Check(r.Context(), loginScope, ip)
	switch {
	case err == nil:
		return false
	case errors.Is(err, rate.ErrRateLimited):
		if wait, err := s.throttle.RetryAfter(r.Context(), loginScope, ip); err == nil && wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
		}
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return true
	default:
		s.logger.Warn("login throttle unavailable", "error", err)
		return false
	}
}

func (s *server) recordFailure(r *http.Request, ip string, err error) {
	if s.throttle == nil {
		return
	}
	if !errors.Is(err, authcore.ErrInvalidCredentials) &&
		!errors.Is(err, authcore.ErrAccountLocked) &&
		!errors.Is(err, authcore.ErrAccountDisabled) {
		return
	}
	if err := s.throttle.Hit(r.Context(), loginScope, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		s.logger.Warn("login throttle unavailable", "error", err)
	}
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	res, err := s.engine.Refresh(requestContext(r), token)
	if err != nil {
		if errors.Is(err, authcore.ErrInvalidRefreshToken) || errors.Is(err, authcore.ErrExpiredRefreshToken) {
			clearRefreshCookie(w, r)
		}
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	access, _ := bearerToken(r.Header.Get("Authorization"))
	refresh := refreshTokenFrom(r)
	if access == "" && refresh == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	if _, err := s.engine.Logout(requestContext(r), refresh, access); err != nil {
		s.fail(w, err)
		return
	}
	clearRefreshCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) logoutAll(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	n, err := s.engine.ForceLogoutAll(requestContext(r), claims.Subject)
	if err != nil {
		s.fail(w, err)
		return
	}
	clearRefreshCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         claims.Subject,
		"email":      claims.Email,
		"roles":      claims.Roles,
		"expires_at": claims.ExpiresAt,
	})
}

func (s *server) reports(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"principal":   p.ID,
		"permissions": s.engine.ResolvePermissions(p).Names(),
	})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.SecurityReport())
}

// fail maps engine errors to responses. Credential errors are collapsed by
// authcore.PublicError so the body never reveals whether an email exists.
func (s *server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authcore.ErrAccountLocked):
		writeError(w, http.StatusLocked, authcore.ErrAccountLocked.Error())
	case errors.Is(err, authcore.ErrInvalidCredentials), errors.Is(err, authcore.ErrAccountDisabled):
		writeError(w, http.StatusUnauthorized, authcore.PublicError(err).Error())
	case errors.Is(err, authcore.ErrInvalidRefreshToken), errors.Is(err, authcore.ErrExpiredRefreshToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case authcore.IsTokenError(err):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, authcore.ErrCredentialStoreUnavailable),
		errors.Is(err, authcore.ErrRefreshStoreUnavailable),
		errors.Is(err, authcore.ErrRevocationUnavailable):
		s.logger.Warn("backend unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func requestContext(r *http.Request) context.Context {
	ctx := authcore.WithClientIP(r.Context(), clientIP(r))
	return authcore.WithUserAgent(ctx, r.UserAgent())
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get("X-Refresh-Token")
}

func bearerToken(h string) (string, bool) {
	const pfx = "Bearer "
	if len(h) > len(pfx) && h[:len(pfx)] == pfx {
		return h[len(pfx):], true
	}
	return "", false
}

func setRefreshCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/v1",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/v1",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
