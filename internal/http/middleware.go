package http

import (
	"context"
	"net/http"
	"strings"

	"yawmiya/internal/gateway"
)

type contextKey string

const callerKey contextKey = "caller"

// withAuth requires a Bearer token and puts the resolved capability on the
// request context. Token problems are a 401; role checks happen later, per
// operation, inside the gateway.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}

		claims, err := s.auth.ParseToken(strings.TrimSpace(token))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or expired token"})
			return
		}

		caller := gateway.Capability{UserID: claims.UserID, Admin: claims.Admin}
		next(w, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))
	}
}

// withAdmin additionally rejects non-admin callers before the handler runs.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.withAuth(func(w http.ResponseWriter, r *http.Request) {
		if !callerFrom(r).Admin {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin access required"})
			return
		}
		next(w, r)
	})
}

func callerFrom(r *http.Request) gateway.Capability {
	caller, _ := r.Context().Value(callerKey).(gateway.Capability)
	return caller
}
