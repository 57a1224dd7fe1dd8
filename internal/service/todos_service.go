package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/internal/repository"
	"github.com/limbo/todoboard/pkg/entity"
)

type TodosService struct {
	repo repository.TodosRepositoryI
}

func NewTodosService(todosRepo repository.TodosRepositoryI) *TodosService {
	return &TodosService{
		repo: todosRepo,
	}
}

func (ts *TodosService) List(ctx context.Context, owner uuid.UUID, order entity.SortOrder) ([]*entity.Todo, error) {
	todos, err := ts.repo.ListByOwner(ctx, owner, order)
	if err != nil {
		return nil, errors.New("todos repository error: " + err.Error())
	}
	return todos, nil
}

func (ts *TodosService) Create(ctx context.Context, owner uuid.UUID, req *CreateTodoRequest) (*entity.Todo, error) {
	req.Task = strings.TrimSpace(req.Task)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.TargetDate.IsZero() {
		return nil, newFieldError("target_date", "target_date is required (YYYY-MM-DD)")
	}
	todo := entity.Todo{
		UserID:     owner,
		Task:       req.Task,
		Status:     entity.StatusTodo,
		TargetDate: req.TargetDate,
	}
	if err := ts.repo.Create(ctx, &todo); err != nil {
		if errors.Is(err, errorvalues.ErrOwnerNotFound) {
			return nil, errorvalues.ErrUserNotFound
		}
		return nil, errors.New("todos repository error: " + err.Error())
	}
	return &todo, nil
}

func (ts *TodosService) Update(ctx context.Context, owner uuid.UUID, id int64, req *UpdateTodoRequest) (*entity.Todo, error) {
	if req.Task != nil {
		task := strings.TrimSpace(*req.Task)
		req.Task = &task
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	patch, err := req.patch()
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, errorvalues.ErrEmptyPatch
	}
	return ts.update(ctx, owner, id, patch)
}

// patch resolves the legacy done flag; an explicit status wins over it.
func (req *UpdateTodoRequest) patch() (entity.TodoPatch, error) {
	patch := entity.TodoPatch{
		Task:       req.Task,
		TargetDate: req.TargetDate,
	}
	switch {
	case req.Status != nil:
		status, err := entity.ParseStatus(*req.Status)
		if err != nil {
			return patch, errorvalues.ErrInvalidStatus
		}
		patch.Status = &status
	case req.Done != nil:
		status := entity.StatusTodo
		if *req.Done {
			status = entity.StatusDone
		}
		patch.Status = &status
	}
	if patch.TargetDate != nil && patch.TargetDate.IsZero() {
		return patch, newFieldError("target_date", "target_date must be a date (YYYY-MM-DD)")
	}
	return patch, nil
}

func (ts *TodosService) update(ctx context.Context, owner uuid.UUID, id int64, patch entity.TodoPatch) (*entity.Todo, error) {
	todo, err := ts.repo.Update(ctx, owner, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrTodoNotFound), errors.Is(err, errorvalues.ErrInvalidStatus),
			errors.Is(err, errorvalues.ErrEmptyPatch):
			return nil, err
		}
		return nil, errors.New("todos repository error: " + err.Error())
	}
	return todo, nil
}

func (ts *TodosService) Delete(ctx context.Context, owner uuid.UUID, id int64) error {
	if err := ts.repo.Delete(ctx, owner, id); err != nil {
		if errors.Is(err, errorvalues.ErrTodoNotFound) {
			return err
		}
		return errors.New("todos repository error: " + err.Error())
	}
	return nil
}

func (ts *TodosService) Advance(ctx context.Context, owner uuid.UUID, id int64) (*entity.Todo, error) {
	todo, err := ts.repo.GetByID(ctx, owner, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrTodoNotFound) {
			return nil, err
		}
		return nil, errors.New("todos repository error: " + err.Error())
	}
	next := todo.Status.Next()
	return ts.update(ctx, owner, id, entity.TodoPatch{Status: &next})
}

func (ts *TodosService) Board(ctx context.Context, owner uuid.UUID, order entity.SortOrder, now time.Time) (*Board, error) {
	todos, err := ts.List(ctx, owner, order)
	if err != nil {
		return nil, err
	}
	return BuildBoard(todos, order, now), nil
}
