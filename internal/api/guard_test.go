package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/limbo/todoboard/internal/api"
	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	testCases := []struct {
		Path       string
		HasSession bool
		Expected   api.GuardDecision
	}{
		{"/", false, api.GuardPass},
		{"/", true, api.GuardPass},
		{"/api/auth/sign-in/username", true, api.GuardPass},
		{"/api/auth", false, api.GuardPass},
		{"/dashboard", false, api.GuardToLogin},
		{"/dashboard/settings", false, api.GuardToLogin},
		{"/onboarding", false, api.GuardToLogin},
		{"/dashboard", true, api.GuardPass},
		{"/onboarding", true, api.GuardPass},
		{"/login", true, api.GuardToDashboard},
		{"/register", true, api.GuardToDashboard},
		{"/login", false, api.GuardPass},
		{"/register", false, api.GuardPass},
		{"/dashboards", false, api.GuardPass},
		{"/loginx", true, api.GuardPass},
		{"/login/reset", true, api.GuardToDashboard},
		{"/register/invite", true, api.GuardToDashboard},
		{"/api/todos", false, api.GuardPass},
		{"/api/login", true, api.GuardPass},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.Expected, api.Decide(tc.Path, tc.HasSession), "path %s, session %v", tc.Path, tc.HasSession)
	}
}

func TestGuardMiddleware(t *testing.T) {
	serv, _ := newTestServer(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := serv.GuardMiddleware(next)

	testCases := []struct {
		Path             string
		Cookie           bool
		ExpectedCode     int
		ExpectedLocation string
	}{
		{"/dashboard", false, http.StatusFound, "/login"},
		{"/register", true, http.StatusFound, "/dashboard"},
		{"/dashboard", true, http.StatusNoContent, ""},
		{"/api/auth/get-session", true, http.StatusNoContent, ""},
	}
	for _, tc := range testCases {
		rr := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, tc.Path, nil)
		if tc.Cookie {
			r.AddCookie(&http.Cookie{Name: sessionCookie, Value: "anything"})
		}
		handler.ServeHTTP(rr, r)
		assert.Equal(t, tc.ExpectedCode, rr.Result().StatusCode, tc.Path)
		assert.Equal(t, tc.ExpectedLocation, rr.Header().Get("Location"), tc.Path)
	}
}
