package api

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/limbo/todoboard/pkg/entity"
)

type JWTServiceI interface {
	GenerateToken(user *entity.User) (string, error)
	ParseToken(tokenString string) (*JWTClaims, error)
	TTL() time.Duration
}

type JWTClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}
