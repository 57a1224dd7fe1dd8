package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/internal/service"
	"github.com/limbo/todoboard/pkg/entity"
	"github.com/limbo/todoboard/pkg/httputil"
)

type CreateTodoRequest struct {
	UserID     string `json:"userId"`
	Task       string `json:"task"`
	TargetDate string `json:"target_date"`
}

type UpdateTodoRequest struct {
	UserID     string  `json:"userId"`
	Task       *string `json:"task"`
	Status     *string `json:"status"`
	Done       *bool   `json:"done"`
	TargetDate *string `json:"target_date"`
}

// principal returns the authenticated owner. A userId sent by the client must name the same user.
func principal(w http.ResponseWriter, r *http.Request, claimed string) (uuid.UUID, bool) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("todo request error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return uuid.Nil, false
	}
	if claimed == "" {
		claimed = r.URL.Query().Get("userId")
	}
	if claimed != "" && claimed != uid.String() {
		logger.Error("todo request error: foreign userId", slog.String("claimed", claimed))
		httputil.WriteErrorResponse(w, http.StatusForbidden, "userId does not match session", nil)
		return uuid.Nil, false
	}
	return uid, true
}

func todoIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		GetLoggerFromCtx(r.Context()).Error("todo request error: invalid id", slog.String("id", r.PathValue("id")))
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid todo id", nil)
		return 0, false
	}
	return id, true
}

func parseTargetDate(w http.ResponseWriter, raw string) (entity.Date, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		httputil.WriteFieldError(w, http.StatusBadRequest, "target_date", "target_date is required")
		return entity.Date{}, false
	}
	d, err := entity.ParseDate(raw)
	if err != nil {
		httputil.WriteFieldError(w, http.StatusBadRequest, "target_date", "target_date must be a date in YYYY-MM-DD format")
		return entity.Date{}, false
	}
	return d, true
}

// writeTodoError maps todo service errors to responses.
func writeTodoError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case writeFieldError(w, err):
		logger.Error(op+" error: validation", slog.String("error", err.Error()))
	case errors.Is(err, errorvalues.ErrEmptyPatch):
		logger.Error(op + " error: empty patch")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, errorvalues.ErrEmptyPatch.Error(), nil)
	case errors.Is(err, errorvalues.ErrInvalidStatus):
		logger.Error(op + " error: invalid status")
		httputil.WriteFieldError(w, http.StatusBadRequest, "status", errorvalues.ErrInvalidStatus.Error())
	case errors.Is(err, errorvalues.ErrTodoNotFound):
		logger.Error(op + " error: todo not found")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "todo not found", nil)
	case errors.Is(err, errorvalues.ErrUserNotFound):
		logger.Error(op + " error: owner not found")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "auth failed: user not found", nil)
	default:
		logger.Error(op+" error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while processing todo", nil)
	}
}

func (s *Server) ListTodos(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, ok := principal(w, r, "")
	if !ok {
		return
	}
	order, err := entity.ParseSortOrder(r.URL.Query().Get("order"), entity.OrderAsc)
	if err != nil {
		httputil.WriteErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*15)
	defer cancel()
	todos, err := s.todosService.List(ctx, uid, order)
	if err != nil {
		logger.Error("getting todos list error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error while getting todos list", nil)
		return
	}
	if todos == nil {
		todos = []*entity.Todo{}
	}
	httputil.WriteJSONResponse(w, http.StatusOK, todos)
	logger.Info("todos provided", slog.Int("count", len(todos)))
}

func (s *Server) CreateTodo(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req CreateTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Error("create todo error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	uid, ok := principal(w, r, req.UserID)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		httputil.WriteFieldError(w, http.StatusBadRequest, "task", "task is required")
		return
	}
	target, ok := parseTargetDate(w, req.TargetDate)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	todo, err := s.todosService.Create(ctx, uid, &service.CreateTodoRequest{
		Task:       req.Task,
		TargetDate: target,
	})
	if err != nil {
		writeTodoError(w, logger, "create todo", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, todo)
	logger.Info("todo created", slog.Int64("todo_id", todo.ID))
}

func (s *Server) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, ok := todoIDFromPath(w, r)
	if !ok {
		return
	}
	var req UpdateTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Error("update todo error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	uid, ok := principal(w, r, req.UserID)
	if !ok {
		return
	}
	upd := &service.UpdateTodoRequest{
		Task:   req.Task,
		Status: req.Status,
		Done:   req.Done,
	}
	if req.TargetDate != nil {
		target, ok := parseTargetDate(w, *req.TargetDate)
		if !ok {
			return
		}
		upd.TargetDate = &target
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	todo, err := s.todosService.Update(ctx, uid, id, upd)
	if err != nil {
		writeTodoError(w, logger, "update todo", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, todo)
	logger.Info("todo updated", slog.Int64("todo_id", id))
}

func (s *Server) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, ok := todoIDFromPath(w, r)
	if !ok {
		return
	}
	uid, ok := principal(w, r, "")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	if err := s.todosService.Delete(ctx, uid, id); err != nil {
		writeTodoError(w, logger, "delete todo", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Deleted"})
	logger.Info("todo deleted", slog.Int64("todo_id", id))
}

func (s *Server) AdvanceTodo(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, ok := todoIDFromPath(w, r)
	if !ok {
		return
	}
	uid, ok := principal(w, r, "")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	todo, err := s.todosService.Advance(ctx, uid, id)
	if err != nil {
		writeTodoError(w, logger, "advance todo", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, todo)
	logger.Info("todo advanced", slog.Int64("todo_id", id), slog.String("status", string(todo.Status)))
}

func (s *Server) TodoBoard(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, ok := principal(w, r, "")
	if !ok {
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
	board, err := s.todosService.Board(ctx, uid, order, time.Now().In(loc))
	if err != nil {
		logger.Error("building board error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error while building board", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, board)
}

// locationFromRequest reads the tz query parameter, falling back to the server location.
func (s *Server) locationFromRequest(r *http.Request) (*time.Location, error) {
	tz := strings.TrimSpace(r.URL.Query().Get("tz"))
	if tz == "" {
		return s.opts.Location, nil
	}
	return time.LoadLocation(tz)
}
