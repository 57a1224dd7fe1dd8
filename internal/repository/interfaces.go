package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/limbo/todoboard/pkg/entity"
)

type UsersRepositoryI interface {
	// Creates new user in database and fills ID and timestamps
	Create(ctx context.Context, user *entity.User) error
	// Looks up user by uid. Used by session resolution
	FindByID(ctx context.Context, uid uuid.UUID) (*entity.User, error)
	// Looks up user by email (stored lowercase). Used for email login and OAuth linking
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	// Looks up user by username. Used for username login
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	// Looks up user by google account id
	FindByGoogleID(ctx context.Context, googleID string) (*entity.User, error)
	// Reports whether any user holds the username
	UsernameExists(ctx context.Context, username string) (bool, error)
	// Sets username of user with uid
	SetUsername(ctx context.Context, uid uuid.UUID, username string) error
	// Attaches google account id to an existing user
	LinkGoogle(ctx context.Context, uid uuid.UUID, googleID string) error
}

type TodosRepositoryI interface {
	// Creates todo, fills ID, Status and timestamps from the inserted row
	Create(ctx context.Context, todo *entity.Todo) error
	// Gets todo with id owned by owner
	GetByID(ctx context.Context, owner uuid.UUID, id int64) (*entity.Todo, error)
	// Lists todos of owner ordered by target date, ties by newest id
	ListByOwner(ctx context.Context, owner uuid.UUID, order entity.SortOrder) ([]*entity.Todo, error)
	// Applies non-nil patch fields to todo with id owned by owner and returns the stored row
	Update(ctx context.Context, owner uuid.UUID, id int64, patch entity.TodoPatch) (*entity.Todo, error)
	// Deletes todo with id owned by owner
	Delete(ctx context.Context, owner uuid.UUID, id int64) error
}

type StatsRepositoryI interface {
	CountUsers(ctx context.Context) (int, error)
	// Pending users signed up through OAuth and have not picked a username yet
	CountPendingOnboarding(ctx context.Context) (int, error)
	CountTodosByStatus(ctx context.Context) ([]entity.StatusCount, error)
	// Todos not DONE whose target date is before today
	CountOverdue(ctx context.Context, today entity.Date) (int, error)
}

type DBConfig interface {
	ConnString() string
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGCfg struct {
	// URL wins over the separate fields when set
	URL      string
	Address  string
	Username string
	Password string
	DB       string
}

func (pgcfg *PGCfg) ConnString() string {
	if pgcfg.URL != "" {
		return pgcfg.URL
	}
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB)
}
