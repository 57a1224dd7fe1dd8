package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/internal/service"
	"github.com/limbo/todoboard/pkg/captcha"
	"github.com/limbo/todoboard/pkg/entity"
	"github.com/limbo/todoboard/pkg/httputil"
)

const legacyUsernameMaxLen = 20

type UsernameLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type EmailLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LegacyLoginRequest struct {
	Username string `json:"username"`
}

type LegacyLoginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return sonic.ConfigDefault.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

// writeFieldError answers with 400 when err carries a validation failure.
func writeFieldError(w http.ResponseWriter, err error) bool {
	var fe *service.FieldError
	if !errors.As(err, &fe) {
		return false
	}
	httputil.WriteFieldError(w, http.StatusBadRequest, fe.Field, fe.Message)
	return true
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req service.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Error("registering error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	user, err := s.userService.Register(ctx, &req)
	if err != nil {
		switch {
		case writeFieldError(w, err):
			logger.Error("registering error: validation", slog.String("error", err.Error()))
		case errors.Is(err, errorvalues.ErrEmailTaken), errors.Is(err, errorvalues.ErrUserExists):
			logger.Error("registering error: existed email")
			httputil.WriteFieldError(w, http.StatusConflict, "email", "user with such email already exists")
		case errors.Is(err, errorvalues.ErrUsernameTaken):
			logger.Error("registering error: username taken")
			httputil.WriteFieldError(w, http.StatusConflict, "username", "Username already taken")
		default:
			logger.Error("registering error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during registration", nil)
		}
		return
	}
	session, err := s.startSession(w, user)
	if err != nil {
		logger.Error("registering error: generating token error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error creating session", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, session)
	logger.Info("successful registration", slog.String("uid", user.ID.String()))
}

func (s *Server) LoginByUsername(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req UsernameLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Error("login error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "username and password are required", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	user, err := s.userService.LoginByUsername(ctx, req.Username, req.Password)
	s.finishLogin(w, r, user, err)
}

func (s *Server) LoginByEmail(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req EmailLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Error("login error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "email and password are required", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	user, err := s.userService.LoginByEmail(ctx, req.Email, req.Password)
	s.finishLogin(w, r, user, err)
}

func (s *Server) finishLogin(w http.ResponseWriter, r *http.Request, user *entity.User, err error) {
	logger := GetLoggerFromCtx(r.Context())
	if err != nil {
		if errors.Is(err, errorvalues.ErrWrongCredentials) {
			logger.Error("login error: wrong credentials")
			httputil.WriteErrorResponse(w, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		logger.Error("login error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during login", nil)
		return
	}
	session, err := s.startSession(w, user)
	if err != nil {
		logger.Error("login error: generating token error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error creating session", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, session)
	logger.Info("successful login", slog.String("uid", user.ID.String()))
}

func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	s.endSession(w)
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*5)
	defer cancel()
	user, claims, err := s.currentUser(ctx, r)
	if err != nil {
		if errors.Is(err, errorvalues.ErrInvalidToken) {
			s.endSession(w)
			httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no active session", nil)
			return
		}
		logger.Error("get session error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while reading session", nil)
		return
	}
	resp := SessionResponse{User: user}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = &claims.ExpiresAt.Time
	}
	httputil.WriteJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	if s.oauth == nil || !s.oauth.Enabled() {
		logger.Warn("google sign in requested but provider is not configured")
		httputil.WriteErrorResponse(w, http.StatusServiceUnavailable, errorvalues.ErrOAuthDisabled.Error(), nil)
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	if s.oauth == nil || !s.oauth.Enabled() {
		httputil.WriteErrorResponse(w, http.StatusServiceUnavailable, errorvalues.ErrOAuthDisabled.Error(), nil)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/api/auth", MaxAge: -1, HttpOnly: true})
	q := r.URL.Query()
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != q.Get("state") {
		logger.Error("oauth callback error", slog.String("error", errorvalues.ErrOAuthState.Error()))
		redirectLoginError(w, r, "state_mismatch")
		return
	}
	if q.Get("error") != "" || q.Get("code") == "" {
		logger.Error("oauth callback error: provider denied", slog.String("reason", q.Get("error")))
		redirectLoginError(w, r, "access_denied")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*15)
	defer cancel()
	profile, err := s.oauth.Exchange(ctx, q.Get("code"))
	if err != nil {
		logger.Error("oauth callback error: exchange", slog.String("error", err.Error()))
		redirectLoginError(w, r, "oauth_failed")
		return
	}
	user, err := s.userService.SignInWithOAuth(ctx, profile)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserExists) || errors.Is(err, errorvalues.ErrEmailTaken) {
			logger.Error("oauth callback error: account exists", slog.String("error", err.Error()))
			redirectLoginError(w, r, "account_exists")
			return
		}
		logger.Error("oauth callback error: service error", slog.String("error", err.Error()))
		redirectLoginError(w, r, "oauth_failed")
		return
	}
	if _, err = s.startSession(w, user); err != nil {
		logger.Error("oauth callback error: generating token error", slog.String("error", err.Error()))
		redirectLoginError(w, r, "oauth_failed")
		return
	}
	logger.Info("successful oauth login", slog.String("provider", s.oauth.Name()), slog.String("uid", user.ID.String()))
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func redirectLoginError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "/login?error="+url.QueryEscape(reason), http.StatusFound)
}

// CaptchaMiddleware checks the x-captcha-response header when endpoint is listed as protected
// and a verifier is configured.
func (s *Server) CaptchaMiddleware(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.captcha == nil || !slices.Contains(s.opts.CaptchaEndpoints, endpoint) {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.captcha.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			logger := GetLoggerFromCtx(r.Context())
			ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
			defer cancel()
			err := s.captcha.Verify(ctx, r.Header.Get(captcha.Header), clientIP(r))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, errorvalues.ErrCaptchaMissing):
				logger.Error("captcha error: missing token", slog.String("endpoint", endpoint))
				httputil.WriteErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
			case errors.Is(err, errorvalues.ErrCaptchaFailed):
				logger.Error("captcha error: rejected", slog.String("endpoint", endpoint))
				httputil.WriteErrorResponse(w, http.StatusForbidden, errorvalues.ErrCaptchaFailed.Error(), nil)
			default:
				logger.Error("captcha error: verifier unavailable", slog.String("error", err.Error()))
				httputil.WriteErrorResponse(w, http.StatusServiceUnavailable, "captcha verification unavailable", nil)
			}
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// LegacyLogin is the pre-auth username-only entry point kept for old clients.
func (s *Server) LegacyLogin(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req LegacyLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteJSONResponse(w, http.StatusBadRequest, LegacyLoginResponse{Message: "Invalid request body"})
		return
	}
	username := strings.TrimSpace(req.Username)
	switch {
	case username == "":
		httputil.WriteJSONResponse(w, http.StatusBadRequest, LegacyLoginResponse{Message: "Username is required"})
		return
	case utf8.RuneCountInString(username) > legacyUsernameMaxLen:
		httputil.WriteJSONResponse(w, http.StatusBadRequest, LegacyLoginResponse{Message: "Username must be at most 20 characters"})
		return
	}
	logger.Info("legacy login", slog.String("username", username))
	httputil.WriteJSONResponse(w, http.StatusOK, LegacyLoginResponse{
		Success:  true,
		Message:  "Login successful",
		Username: username,
	})
}
