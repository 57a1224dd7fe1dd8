package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/internal/repository"
	"github.com/limbo/todoboard/internal/service"
	"github.com/limbo/todoboard/pkg/entity"
	"github.com/limbo/todoboard/pkg/oauth"
	"github.com/pressly/goose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

const password = "test_password"

func registerJohn(t *testing.T, us *service.UserService) *entity.User {
	t.Helper()
	user, err := us.Register(context.Background(), &service.RegisterRequest{
		Email:     " John@Example.com ",
		Password:  password,
		Firstname: "John",
		Lastname:  "Doe Smith",
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	repo := newUsersRepoMock()
	us := service.NewUserService(repo)
	ctx := context.Background()

	t.Run("registered with derived username", func(t *testing.T) {
		user := registerJohn(t, us)
		assert.Equal(t, "john@example.com", user.Email)
		assert.Equal(t, "jdoesmi", user.UsernameOrEmpty())
		assert.Equal(t, "John Doe Smith", user.Name)
		require.NotNil(t, user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)))
	})
	t.Run("email taken", func(t *testing.T) {
		_, err := us.Register(ctx, &service.RegisterRequest{Email: "john@example.com", Password: password, Username: "other"})
		assert.ErrorIs(t, err, errorvalues.ErrEmailTaken)
	})
	t.Run("derived username taken", func(t *testing.T) {
		_, err := us.Register(ctx, &service.RegisterRequest{Email: "jd@example.com", Password: password, Name: "Jane Doesmith"})
		assert.ErrorIs(t, err, errorvalues.ErrUsernameTaken)
	})
	t.Run("validation", func(t *testing.T) {
		testCases := []struct {
			req   service.RegisterRequest
			field string
		}{
			{service.RegisterRequest{Email: "not-an-email", Password: password}, "email"},
			{service.RegisterRequest{Email: "a@example.com", Password: "short"}, "password"},
			{service.RegisterRequest{Email: "a@example.com", Password: password, Username: "1abc"}, "username"},
			{service.RegisterRequest{Email: "a@example.com", Password: password, Username: "ab"}, "username"},
		}
		for _, tc := range testCases {
			_, err := us.Register(ctx, &tc.req)
			var fe *service.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tc.field, fe.Field)
		}
	})
}

func TestLogin(t *testing.T) {
	repo := newUsersRepoMock()
	us := service.NewUserService(repo)
	ctx := context.Background()
	user := registerJohn(t, us)

	t.Run("by username", func(t *testing.T) {
		res, err := us.LoginByUsername(ctx, "jdoesmi", password)
		require.NoError(t, err)
		assert.Equal(t, user.ID, res.ID)
	})
	t.Run("by email", func(t *testing.T) {
		res, err := us.LoginByEmail(ctx, "JOHN@example.com", password)
		require.NoError(t, err)
		assert.Equal(t, user.ID, res.ID)
	})
	t.Run("wrong password", func(t *testing.T) {
		_, err := us.LoginByUsername(ctx, "jdoesmi", "nope-nope")
		assert.ErrorIs(t, err, errorvalues.ErrWrongCredentials)
	})
	t.Run("unknown user looks the same", func(t *testing.T) {
		_, err := us.LoginByUsername(ctx, "ghost", password)
		assert.ErrorIs(t, err, errorvalues.ErrWrongCredentials)
	})
	t.Run("oauth only account has no password", func(t *testing.T) {
		_, err := us.SignInWithOAuth(ctx, &oauth.Profile{ID: "g-9", Email: "g@example.com", Name: "Gina Lollo"})
		require.NoError(t, err)
		_, err = us.LoginByEmail(ctx, "g@example.com", "")
		assert.ErrorIs(t, err, errorvalues.ErrWrongCredentials)
	})
	t.Run("db error", func(t *testing.T) {
		repo.broken = true
		defer func() { repo.broken = false }()
		_, err := us.LoginByEmail(ctx, "john@example.com", password)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, errorvalues.ErrWrongCredentials)
	})
}

func TestClaimUsername(t *testing.T) {
	repo := newUsersRepoMock()
	us := service.NewUserService(repo)
	ctx := context.Background()
	john := registerJohn(t, us)
	newcomer, err := us.SignInWithOAuth(ctx, &oauth.Profile{ID: "g-1", Email: "jd@example.com", Name: "Jane Doesmith", EmailVerified: true})
	require.NoError(t, err)
	require.False(t, newcomer.HasUsername())

	t.Run("taken username does not mutate", func(t *testing.T) {
		before := repo.writeCount()
		_, err := us.ClaimUsername(ctx, newcomer.ID, &service.ClaimUsernameRequest{Username: "jdoesmi"})
		assert.ErrorIs(t, err, errorvalues.ErrUsernameTaken)
		assert.Equal(t, before, repo.writeCount())
		stored, err := us.GetByID(ctx, newcomer.ID)
		require.NoError(t, err)
		assert.False(t, stored.HasUsername())
	})
	t.Run("own username is kept", func(t *testing.T) {
		before := repo.writeCount()
		user, err := us.ClaimUsername(ctx, john.ID, &service.ClaimUsernameRequest{Username: "jdoesmi"})
		require.NoError(t, err)
		assert.Equal(t, john.ID, user.ID)
		assert.Equal(t, "jdoesmi", user.UsernameOrEmpty())
		assert.Equal(t, before, repo.writeCount())
	})
	t.Run("invalid username", func(t *testing.T) {
		_, err := us.ClaimUsername(ctx, newcomer.ID, &service.ClaimUsernameRequest{Username: "bad name"})
		assert.ErrorIs(t, err, errorvalues.ErrValidation)
	})
	t.Run("claimed", func(t *testing.T) {
		user, err := us.ClaimUsername(ctx, newcomer.ID, &service.ClaimUsernameRequest{Username: " jane_d "})
		require.NoError(t, err)
		assert.Equal(t, "jane_d", user.UsernameOrEmpty())
	})
	t.Run("unknown user", func(t *testing.T) {
		_, err := us.ClaimUsername(ctx, uuid.New(), &service.ClaimUsernameRequest{Username: "free_one"})
		assert.ErrorIs(t, err, errorvalues.ErrUserNotFound)
	})
}

func TestSignInWithOAuth(t *testing.T) {
	repo := newUsersRepoMock()
	us := service.NewUserService(repo)
	ctx := context.Background()

	profile := &oauth.Profile{ID: "g-1", Email: "ann@example.com", EmailVerified: true, Name: "Ann Marie Lee", GivenName: "Ann", FamilyName: "Marie Lee"}
	first, err := us.SignInWithOAuth(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, "amariel", first.UsernameOrEmpty())
	assert.Nil(t, first.PasswordHash)

	t.Run("returning user", func(t *testing.T) {
		again, err := us.SignInWithOAuth(ctx, profile)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	})
	t.Run("links existing email account", func(t *testing.T) {
		john := registerJohn(t, us)
		linked, err := us.SignInWithOAuth(ctx, &oauth.Profile{ID: "g-2", Email: "john@example.com", EmailVerified: true, Name: "John Doe Smith"})
		require.NoError(t, err)
		assert.Equal(t, john.ID, linked.ID)
		byGoogle, err := repo.FindByGoogleID(ctx, "g-2")
		require.NoError(t, err)
		assert.Equal(t, john.ID, byGoogle.ID)
	})
	t.Run("unverified email is not linked", func(t *testing.T) {
		_, err := us.SignInWithOAuth(ctx, &oauth.Profile{ID: "g-3", Email: "john@example.com", Name: "Mallory"})
		assert.ErrorIs(t, err, errorvalues.ErrUserExists)
	})
	t.Run("colliding derived username defers to onboarding", func(t *testing.T) {
		user, err := us.SignInWithOAuth(ctx, &oauth.Profile{ID: "g-4", Email: "amy@example.com", Name: "Amy Mariel"})
		require.NoError(t, err)
		assert.False(t, user.HasUsername())
	})
	t.Run("incomplete profile", func(t *testing.T) {
		_, err := us.SignInWithOAuth(ctx, &oauth.Profile{ID: "g-5"})
		assert.Error(t, err)
	})
}

func TestUserServiceIntegrational(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test needs docker")
	}
	dbCfg := setupUsersTestDB(t)
	ctx := context.Background()
	pool, err := repository.NewPool(ctx, dbCfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	us := service.NewUserService(repository.NewUsersRepo(pool))

	user := registerJohn(t, us)
	t.Run("login", func(t *testing.T) {
		res, err := us.LoginByUsername(ctx, "jdoesmi", password)
		require.NoError(t, err)
		assert.Equal(t, user.ID, res.ID)
	})
	t.Run("duplicate email", func(t *testing.T) {
		_, err := us.Register(ctx, &service.RegisterRequest{Email: "john@example.com", Password: password})
		assert.ErrorIs(t, err, errorvalues.ErrEmailTaken)
	})
	t.Run("onboarding", func(t *testing.T) {
		newcomer, err := us.SignInWithOAuth(ctx, &oauth.Profile{ID: "g-1", Email: "jd@example.com", Name: "Jane Doesmith"})
		require.NoError(t, err)
		assert.False(t, newcomer.HasUsername())
		_, err = us.ClaimUsername(ctx, newcomer.ID, &service.ClaimUsernameRequest{Username: "jdoesmi"})
		assert.ErrorIs(t, err, errorvalues.ErrUsernameTaken)
		claimed, err := us.ClaimUsername(ctx, newcomer.ID, &service.ClaimUsernameRequest{Username: "jane_d"})
		require.NoError(t, err)
		assert.Equal(t, "jane_d", claimed.UsernameOrEmpty())
	})
	t.Run("not found by id", func(t *testing.T) {
		_, err := us.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, errorvalues.ErrUserNotFound)
	})
}

type testPGConfig struct {
	connStr string
}

func (cfg *testPGConfig) ConnString() string {
	return cfg.connStr
}

func setupUsersTestDB(t *testing.T) *testPGConfig {
	container, err := postgres.Run(context.Background(), "postgres:17",
		postgres.WithUsername("test_user"),
		postgres.WithDatabase("todoboard"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatal("error running test container: " + err.Error())
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})
	connStr, err := container.ConnectionString(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	connStr += "sslmode=disable"
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if err = goose.Up(conn, "../../migrations"); err != nil {
		t.Fatal(err)
	}
	return &testPGConfig{connStr: connStr}
}
