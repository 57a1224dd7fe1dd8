package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/pkg/entity"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"

	usersEmailKey    = "users_email_key"
	usersUsernameKey = "users_username_key"
)

const userColumns = `id, email, name, username, firstname, lastname, password_hash, google_id, created_at, updated_at`

type UsersRepository struct {
	conn PgConnection
}

func NewUsersRepo(conn PgConnection) *UsersRepository {
	return &UsersRepository{
		conn: conn,
	}
}

func (ur *UsersRepository) Create(ctx context.Context, user *entity.User) error {
	if user == nil {
		return errors.New("user is nil")
	}
	row := ur.conn.QueryRow(ctx, `INSERT INTO users (email, name, username, firstname, lastname, password_hash, google_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at;`,
		user.Email, user.Name, user.Username, user.Firstname, user.Lastname, user.PasswordHash, user.GoogleID,
	)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return uniqueViolationError(pgErr)
		}
		return errors.New("creating user db error: " + err.Error())
	}
	return nil
}

func uniqueViolationError(pgErr *pgconn.PgError) error {
	switch pgErr.ConstraintName {
	case usersEmailKey:
		return errorvalues.ErrEmailTaken
	case usersUsernameKey:
		return errorvalues.ErrUsernameTaken
	}
	return errorvalues.ErrUserExists
}

func (ur *UsersRepository) FindByID(ctx context.Context, uid uuid.UUID) (*entity.User, error) {
	return ur.findOne(ctx, "id", `SELECT `+userColumns+` FROM users WHERE id = $1;`, uid)
}

func (ur *UsersRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return ur.findOne(ctx, "email", `SELECT `+userColumns+` FROM users WHERE email = $1;`, email)
}

func (ur *UsersRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return ur.findOne(ctx, "username", `SELECT `+userColumns+` FROM users WHERE username = $1;`, username)
}

func (ur *UsersRepository) FindByGoogleID(ctx context.Context, googleID string) (*entity.User, error) {
	return ur.findOne(ctx, "google id", `SELECT `+userColumns+` FROM users WHERE google_id = $1;`, googleID)
}

func (ur *UsersRepository) findOne(ctx context.Context, by, query string, arg any) (*entity.User, error) {
	var user entity.User
	row := ur.conn.QueryRow(ctx, query, arg)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Username, &user.Firstname, &user.Lastname,
		&user.PasswordHash, &user.GoogleID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrUserNotFound
		}
		return nil, errors.New("searching user by " + by + " error: " + err.Error())
	}
	return &user, nil
}

func (ur *UsersRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	row := ur.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1);`, username)
	if err := row.Scan(&exists); err != nil {
		return false, errors.New("checking username error: " + err.Error())
	}
	return exists, nil
}

func (ur *UsersRepository) SetUsername(ctx context.Context, uid uuid.UUID, username string) error {
	ct, err := ur.conn.Exec(ctx, `UPDATE users SET username = $1, updated_at = NOW() WHERE id = $2;`, username, uid)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return errorvalues.ErrUsernameTaken
		}
		return errors.New("updating username error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrUserNotFound
	}
	return nil
}

func (ur *UsersRepository) LinkGoogle(ctx context.Context, uid uuid.UUID, googleID string) error {
	ct, err := ur.conn.Exec(ctx, `UPDATE users SET google_id = $1, updated_at = NOW() WHERE id = $2;`, googleID, uid)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return errorvalues.ErrUserExists
		}
		return errors.New("linking google account error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrUserNotFound
	}
	return nil
}
