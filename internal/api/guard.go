package api

import (
	"net/http"
	"strings"
)

type GuardDecision int

const (
	GuardPass GuardDecision = iota
	GuardToLogin
	GuardToDashboard
)

// Decide is the routing rule applied before any page is served. Only the presence of a
// session cookie matters here; pages verify the session themselves.
func Decide(path string, hasSession bool) GuardDecision {
	if path == "/" || under(path, "/api/auth") {
		return GuardPass
	}
	if !hasSession && (under(path, "/dashboard") || under(path, "/onboarding")) {
		return GuardToLogin
	}
	if hasSession && (under(path, "/login") || under(path, "/register")) {
		return GuardToDashboard
	}
	return GuardPass
}

func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (s *Server) GuardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch Decide(r.URL.Path, s.hasSessionCookie(r)) {
		case GuardToLogin:
			http.Redirect(w, r, "/login", http.StatusFound)
		case GuardToDashboard:
			http.Redirect(w, r, "/dashboard", http.StatusFound)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
