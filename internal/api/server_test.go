package api_test

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang/mock/gomock"
	_ "github.com/lib/pq"
	"github.com/limbo/todoboard/internal/api"
	"github.com/limbo/todoboard/internal/repository"
	"github.com/limbo/todoboard/internal/service"
	"github.com/limbo/todoboard/internal/service/mocks"
	"github.com/limbo/todoboard/pkg/entity"
	jwtservice "github.com/limbo/todoboard/pkg/jwt_service"
	"github.com/pressly/goose"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRouterMetricsAndCORS(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := prometheus.NewRegistry()
	serv := api.New(&api.ServicesList{
		TodosService: mocks.NewMockTodosServiceI(ctrl),
		DB:           &pingerMock{},
		Registry:     reg,
	}, api.WithCORSOrigins([]string{"http://localhost:3000"}))
	handler := serv.Handler()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Result().StatusCode)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	handler.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Result().StatusCode)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Result().StatusCode)
	assert.Contains(t, rr.Body.String(), `todoboard_http_requests_total{code="200",method="GET",route="/health"} 1`)
	assert.Contains(t, rr.Body.String(), `code="401"`)
}

func TestTodosHandlersIntegrational(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test needs docker")
	}
	cfg := setupTestDB(t)
	ctx := context.Background()
	pool, err := repository.NewPool(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	serv := api.New(&api.ServicesList{
		UserService:  service.NewUserService(repository.NewUsersRepo(pool)),
		TodosService: service.NewTodosService(repository.NewTodosRepo(pool)),
		JWTService:   jwtservice.New(secret, time.Hour),
		DB:           repository.NewPinger(pool),
	}, api.WithLocation(time.UTC))
	ts := httptest.NewServer(serv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	call := func(method, path, body string) *http.Response {
		t.Helper()
		var rd io.Reader
		if body != "" {
			rd = strings.NewReader(body)
		}
		req, err := http.NewRequest(method, ts.URL+path, rd)
		require.NoError(t, err)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("dashboard without session", func(t *testing.T) {
		resp := call(http.MethodGet, "/dashboard", "")
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})
	t.Run("sign up", func(t *testing.T) {
		resp := call(http.MethodPost, "/api/auth/sign-up/email",
			`{"email":"john@example.com","password":"`+password+`","firstname":"John","lastname":"Doe Smith"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var session api.SessionResponse
		require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&session))
		assert.Equal(t, "jdoesmi", session.User.UsernameOrEmpty())
	})
	t.Run("login page bounces to dashboard", func(t *testing.T) {
		resp := call(http.MethodGet, "/login", "")
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	})

	var created entity.Todo
	t.Run("create then list", func(t *testing.T) {
		resp := call(http.MethodPost, "/api/todos", `{"task":"write report","target_date":"2025-03-10"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&created))
		assert.Equal(t, entity.StatusTodo, created.Status)

		resp = call(http.MethodGet, "/api/todos", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var todos []entity.Todo
		require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&todos))
		require.Len(t, todos, 1)
		assert.Equal(t, created.ID, todos[0].ID)
	})
	t.Run("mark done moves it to the DONE column", func(t *testing.T) {
		resp := call(http.MethodPut, "/api/todos/"+itoa(created.ID), `{"done":true}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = call(http.MethodGet, "/api/todos/board", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var board service.Board
		require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&board))
		require.Len(t, board.Columns, 3)
		assert.Equal(t, 0, board.Columns[0].Count)
		require.Equal(t, 1, board.Columns[2].Count)
		assert.Equal(t, entity.LabelCompleted, board.Columns[2].Todos[0].Label)
	})
	t.Run("advance wraps to TODO", func(t *testing.T) {
		resp := call(http.MethodPost, "/api/todos/"+itoa(created.ID)+"/advance", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var todo entity.Todo
		require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&todo))
		assert.Equal(t, entity.StatusTodo, todo.Status)
	})
	t.Run("delete then list", func(t *testing.T) {
		resp := call(http.MethodDelete, "/api/todos/"+itoa(created.ID), "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp = call(http.MethodDelete, "/api/todos/"+itoa(created.ID), "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp = call(http.MethodGet, "/api/todos", "")
		body, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `[]`, string(body))
	})
	t.Run("sign out", func(t *testing.T) {
		resp := call(http.MethodPost, "/api/auth/sign-out", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp = call(http.MethodGet, "/api/todos", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

type testPGConfig struct {
	connStr string
}

func (cfg *testPGConfig) ConnString() string {
	return cfg.connStr
}

func setupTestDB(t *testing.T) *testPGConfig {
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
