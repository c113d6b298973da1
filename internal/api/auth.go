// Package api implements HTTP handlers and helpers for the factory planning service.
package api

import (
	"net/http"
	"strings"
)

const defaultTenant = "t_demo"

// Principal is the caller identity a request is served as.
type Principal struct {
	Tenant string
	Role   string // admin, planner
}

// getPrincipal extracts tenant and role from a verified bearer token when token auth is
// configured, else from the X-Tenant-Id and X-Role headers. A missing tenant maps to the demo
// tenant and a missing role to planner.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if s.Auth != nil && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		pr, err := s.Auth.Verify(strings.TrimSpace(authz[len("Bearer "):]))
		if err == nil {
			if pr.Role == "" {
				pr.Role = "planner"
			}
			return Principal{Tenant: pr.Tenant, Role: pr.Role}
		}
		s.Log.DebugContext(r.Context(), "bearer token rejected", "err", err)
	}
	tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
	if tenant == "" {
		tenant = defaultTenant
	}
	role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role")))
	if role == "" {
		role = "planner"
	}
	return Principal{Tenant: tenant, Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// requireAdmin writes a 403 and returns false for non-admin principals.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return p, false
	}
	return p, true
}
