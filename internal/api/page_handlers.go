package api

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/internal/service"
	"github.com/limbo/todoboard/pkg/entity"
	"github.com/limbo/todoboard/pkg/httputil"
)

type PageStateResponse struct {
	Page             string   `json:"page"`
	CaptchaSiteKey   string   `json:"captcha_site_key,omitempty"`
	CaptchaEndpoints []string `json:"captcha_endpoints"`
	Providers        []string `json:"providers"`
}

type DashboardResponse struct {
	User  *entity.User   `json:"user"`
	Board *service.Board `json:"board"`
}

func (s *Server) PageState(w http.ResponseWriter, r *http.Request) {
	page := strings.Trim(r.URL.Path, "/")
	if page == "" {
		page = "home"
	}
	resp := PageStateResponse{
		Page:      page,
		Providers: []string{},
	}
	if s.captcha != nil && s.captcha.Enabled() {
		resp.CaptchaSiteKey = s.opts.CaptchaSiteKey
		resp.CaptchaEndpoints = s.opts.CaptchaEndpoints
	}
	if resp.CaptchaEndpoints == nil {
		resp.CaptchaEndpoints = []string{}
	}
	if s.oauth != nil && s.oauth.Enabled() {
		resp.Providers = append(resp.Providers, s.oauth.Name())
	}
	httputil.WriteJSONResponse(w, http.StatusOK, resp)
}

// pageUser resolves the session for page routes. An invalid session clears the cookie and sends
// the client to /login, otherwise the guard would bounce it back here.
func (s *Server) pageUser(w http.ResponseWriter, r *http.Request) (*entity.User, bool) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*5)
	defer cancel()
	user, _, err := s.currentUser(ctx, r)
	if err != nil {
		if !errors.Is(err, errorvalues.ErrInvalidToken) {
			logger.Error("page session error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while reading session", nil)
			return nil, false
		}
		s.endSession(w)
		http.Redirect(w, r, "/login", http.StatusFound)
		return nil, false
	}
	return user, true
}

func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	user, ok := s.pageUser(w, r)
	if !ok {
		return
	}
	if !user.HasUsername() {
		http.Redirect(w, r, "/onboarding", http.StatusFound)
		return
	}
	order, err := entity.ParseSortOrder(r.URL.Query().Get("order"), entity.OrderDesc)
	if err != nil {
		httputil.WriteErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	loc, err := s.locationFromRequest(r)
	if err != nil {
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "unknown time zone", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*15)
	defer cancel()
	board, err := s.todosService.Board(ctx, user.ID, order, time.Now().In(loc))
	if err != nil {
		logger.Error("dashboard error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error while building board", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, DashboardResponse{User: user, Board: board})
}

func (s *Server) OnboardingPage(w http.ResponseWriter, r *http.Request) {
	user, ok := s.pageUser(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	user, ok := s.pageUser(w, r)
	if !ok {
		return
	}
	var req service.ClaimUsernameRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSON(r, &req); err != nil {
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid form", nil)
			return
		}
		req.Username = r.PostForm.Get("username")
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	updated, err := s.userService.ClaimUsername(ctx, user.ID, &req)
	if err != nil {
		switch {
		case writeFieldError(w, err):
			logger.Error("onboarding error: validation", slog.String("error", err.Error()))
		case errors.Is(err, errorvalues.ErrUsernameTaken):
			logger.Error("onboarding error: username taken")
			httputil.WriteFieldError(w, http.StatusConflict, "username", "Username already taken")
		default:
			logger.Error("onboarding error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while saving username", nil)
		}
		return
	}
	// token claims carry the username
	if _, err = s.startSession(w, updated); err != nil {
		logger.Error("onboarding error: refreshing session", slog.String("error", err.Error()))
	}
	logger.Info("username claimed", slog.String("uid", updated.ID.String()))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second*3)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			GetLoggerFromCtx(r.Context()).Error("health check: database unreachable", slog.String("error", err.Error()))
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	httputil.WriteJSONResponse(w, code, status)
}
