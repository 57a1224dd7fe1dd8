package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/pkg/entity"
)

const oauthStateCookie = "todoboard_oauth_state"

type SessionResponse struct {
	User      *entity.User `json:"user"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

func (s *Server) hasSessionCookie(r *http.Request) bool {
	c, err := r.Cookie(s.opts.SessionCookie)
	return err == nil && c.Value != ""
}

// tokenFromRequest prefers the session cookie and falls back to the Authorization header.
func (s *Server) tokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(s.opts.SessionCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return GetTokenFromHeader(r)
}

// currentUser verifies the session token and reads a fresh user row.
func (s *Server) currentUser(ctx context.Context, r *http.Request) (*entity.User, *JWTClaims, error) {
	token, err := s.tokenFromRequest(r)
	if err != nil {
		return nil, nil, err
	}
	claims, err := s.jwtService.ParseToken(token)
	if err != nil {
		return nil, nil, errorvalues.ErrInvalidToken
	}
	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, nil, errorvalues.ErrInvalidToken
	}
	user, err := s.userService.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, nil, errorvalues.ErrInvalidToken
		}
		return nil, nil, err
	}
	return user, claims, nil
}

// startSession issues a token for user and sets it as the session cookie.
func (s *Server) startSession(w http.ResponseWriter, user *entity.User) (*SessionResponse, error) {
	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	ttl := s.jwtService.TTL()
	expires := time.Now().Add(ttl)
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return &SessionResponse{User: user, Token: token, ExpiresAt: &expires}, nil
}

func (s *Server) endSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
