// Package http is the JSON API surface. Handlers translate requests into
// gateway mutations and ledger reads; every response error passes through
// the shared taxonomy mapping in respond.go.
package http

import (
	"context"
	"net/http"
	"time"

	"yawmiya/internal/auth"
	"yawmiya/internal/gateway"
	"yawmiya/internal/ledger"
	applog "yawmiya/internal/log"
	"yawmiya/internal/store"
)

type Server struct {
	*http.Server

	records store.RecordStore
	ledger  *ledger.Service
	gateway *gateway.Gateway
	auth    *auth.Service
}

func NewServer(addr string, records store.RecordStore, ledgerSvc *ledger.Service, gw *gateway.Gateway, authSvc *auth.Service, logger *applog.Logger) *Server {
	s := &Server{
		records: records,
		ledger:  ledgerSvc,
		gateway: gw,
		auth:    authSvc,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.withAuth(s.handleMe))

	mux.HandleFunc("GET /api/entries", s.withAuth(s.handleListEntries))
	mux.HandleFunc("POST /api/entries", s.withAuth(s.handleCreateEntry))
	mux.HandleFunc("PUT /api/entries/{id}", s.withAuth(s.handleUpdateEntry))
	mux.HandleFunc("DELETE /api/entries/{id}", s.withAuth(s.handleDeleteEntry))
	mux.HandleFunc("GET /api/entries/stats", s.withAuth(s.handleEntryStats))
	mux.HandleFunc("GET /api/summary", s.withAuth(s.handleMonthSummary))
	mux.HandleFunc("GET /api/monthly-advances", s.withAuth(s.handleOwnAdvances))
	mux.HandleFunc("GET /api/deductions", s.withAuth(s.handleOwnDeductions))

	mux.HandleFunc("PUT /api/profile/username", s.withAuth(s.handleChangeUsername))
	mux.HandleFunc("PUT /api/profile/email", s.withAuth(s.handleChangeEmail))
	mux.HandleFunc("PUT /api/profile/password", s.withAuth(s.handleChangePassword))

	mux.HandleFunc("GET /api/admin/users", s.withAdmin(s.handleListUsers))
	mux.HandleFunc("DELETE /api/admin/users/{id}", s.withAdmin(s.handleDeleteUser))
	mux.HandleFunc("DELETE /api/admin/users/{id}/entries", s.withAdmin(s.handleDeleteUserEntries))
	mux.HandleFunc("POST /api/admin/users/{id}/deductions", s.withAdmin(s.handleAddDeduction))
	mux.HandleFunc("GET /api/admin/users/{id}/deductions", s.withAdmin(s.handleUserDeductions))
	mux.HandleFunc("POST /api/admin/users/{id}/advances", s.withAdmin(s.handleSetAdvance))
	mux.HandleFunc("PUT /api/admin/users/{id}/username", s.withAdmin(s.handleAdminUsername))
	mux.HandleFunc("PUT /api/admin/users/{id}/email", s.withAdmin(s.handleAdminEmail))
	mux.HandleFunc("PUT /api/admin/users/{id}/password", s.withAdmin(s.handleAdminPassword))
	mux.HandleFunc("PUT /api/admin/users/{id}/fixed-deductions", s.withAdmin(s.handleFixedDeductions))
	mux.HandleFunc("POST /api/admin/users/{id}/admin-status", s.withAdmin(s.handleToggleAdmin))
	mux.HandleFunc("GET /api/admin/summary", s.withAdmin(s.handleFleetSummary))
	mux.HandleFunc("GET /api/admin/stats", s.withAdmin(s.handleSystemStats))
	mux.HandleFunc("POST /api/admin/reset-data", s.withAdmin(s.handleResetData))
	mux.HandleFunc("POST /api/admin/system-reset", s.withAdmin(s.handleSystemReset))

	var handler http.Handler = mux
	if logger != nil {
		handler = applog.Middleware(logger)(handler)
	}

	s.Server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
