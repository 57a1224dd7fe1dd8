package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/limbo/todoboard/pkg/entity"
	"github.com/limbo/todoboard/pkg/oauth"
)

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Name      string `json:"name" validate:"max=100"`
	Firstname string `json:"firstname" validate:"max=50"`
	Lastname  string `json:"lastname" validate:"max=50"`
	// Overridden by the derived username when both name parts are known
	Username string `json:"username" validate:"omitempty,min=3,max=20,alphanum_underscore"`
}

type ClaimUsernameRequest struct {
	Username string `json:"username" validate:"required,min=3,max=20,alphanum_underscore"`
}

type CreateTodoRequest struct {
	Task       string      `json:"task" validate:"required,max=50"`
	TargetDate entity.Date `json:"target_date"`
}

// UpdateTodoRequest is a partial update. Done is the legacy boolean form of Status.
type UpdateTodoRequest struct {
	Task       *string      `json:"task" validate:"omitnil,min=1,max=50"`
	Status     *string      `json:"status" validate:"omitnil,todo_status"`
	Done       *bool        `json:"done"`
	TargetDate *entity.Date `json:"target_date"`
}

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

type UserServiceI interface {
	// Validates request, derives username, hashes password and stores the user
	Register(ctx context.Context, req *RegisterRequest) (*entity.User, error)
	// Compares given credentials. If ok, gives back user's data
	LoginByUsername(ctx context.Context, username, password string) (*entity.User, error)
	LoginByEmail(ctx context.Context, email, password string) (*entity.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	// Onboarding: sets username of user with id if nobody holds it yet
	ClaimUsername(ctx context.Context, id uuid.UUID, req *ClaimUsernameRequest) (*entity.User, error)
	// Finds the user linked to the provider account, links by email or creates a new one
	SignInWithOAuth(ctx context.Context, profile *oauth.Profile) (*entity.User, error)
}

type TodosServiceI interface {
	List(ctx context.Context, owner uuid.UUID, order entity.SortOrder) ([]*entity.Todo, error)
	Create(ctx context.Context, owner uuid.UUID, req *CreateTodoRequest) (*entity.Todo, error)
	Update(ctx context.Context, owner uuid.UUID, id int64, req *UpdateTodoRequest) (*entity.Todo, error)
	Delete(ctx context.Context, owner uuid.UUID, id int64) error
	// Moves todo one step along TODO -> DOING -> DONE -> TODO
	Advance(ctx context.Context, owner uuid.UUID, id int64) (*entity.Todo, error)
	// Groups owner's todos into status columns labelled against now
	Board(ctx context.Context, owner uuid.UUID, order entity.SortOrder, now time.Time) (*Board, error)
}

type OAuthProvider interface {
	Name() string
	Enabled() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.Profile, error)
}

type CaptchaVerifier interface {
	Enabled() bool
	Verify(ctx context.Context, token, remoteIP string) error
}
