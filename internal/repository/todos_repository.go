package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/pkg/entity"
)

const todoColumns = `id, user_id, task, status::text, target_date, created_at, updated_at`

const (
	listTodosAsc  = `SELECT ` + todoColumns + ` FROM todos WHERE user_id = $1 ORDER BY target_date ASC, id DESC;`
	listTodosDesc = `SELECT ` + todoColumns + ` FROM todos WHERE user_id = $1 ORDER BY target_date DESC, id DESC;`
)

type TodosRepository struct {
	conn PgConnection
}

func NewTodosRepo(conn PgConnection) *TodosRepository {
	return &TodosRepository{
		conn: conn,
	}
}

func (tr *TodosRepository) Create(ctx context.Context, todo *entity.Todo) error {
	if todo == nil {
		return errors.New("todo is nil")
	}
	status := todo.Status
	if status == "" {
		status = entity.StatusTodo
	}
	row := tr.conn.QueryRow(ctx, `INSERT INTO todos (user_id, task, status, target_date)
		VALUES ($1, $2, $3::todo_status, $4) RETURNING `+todoColumns+`;`,
		todo.UserID, todo.Task, string(status), todo.TargetDate.Time,
	)
	created, err := scanTodo(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgForeignKeyViolation:
				return errorvalues.ErrOwnerNotFound
			case pgInvalidTextRepr:
				return errorvalues.ErrInvalidStatus
			}
		}
		return errors.New("creating todo db error: " + err.Error())
	}
	*todo = *created
	return nil
}

func (tr *TodosRepository) GetByID(ctx context.Context, owner uuid.UUID, id int64) (*entity.Todo, error) {
	row := tr.conn.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2;`, id, owner)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrTodoNotFound
		}
		return nil, errors.New("getting todo by id error: " + err.Error())
	}
	return todo, nil
}

func (tr *TodosRepository) ListByOwner(ctx context.Context, owner uuid.UUID, order entity.SortOrder) ([]*entity.Todo, error) {
	query := listTodosAsc
	if order == entity.OrderDesc {
		query = listTodosDesc
	}
	rows, err := tr.conn.Query(ctx, query, owner)
	if err != nil {
		return nil, errors.New("listing todos error: " + err.Error())
	}
	defer rows.Close()
	todos := make([]*entity.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, errors.New("unmarshalling todo error: " + err.Error())
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New("unexpected error after scanning todos: " + err.Error())
	}
	return todos, nil
}

func (tr *TodosRepository) Update(ctx context.Context, owner uuid.UUID, id int64, patch entity.TodoPatch) (*entity.Todo, error) {
	if patch.Empty() {
		return nil, errorvalues.ErrEmptyPatch
	}
	var (
		status     *string
		targetDate *time.Time
	)
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}
	if patch.TargetDate != nil {
		targetDate = &patch.TargetDate.Time
	}
	row := tr.conn.QueryRow(ctx, `UPDATE todos SET
		task = COALESCE($3, task),
		status = COALESCE($4::todo_status, status),
		target_date = COALESCE($5, target_date),
		updated_at = NOW()
		WHERE id = $1 AND user_id = $2 RETURNING `+todoColumns+`;`,
		id, owner, patch.Task, status, targetDate,
	)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrTodoNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepr {
			return nil, errorvalues.ErrInvalidStatus
		}
		return nil, errors.New("updating todo error: " + err.Error())
	}
	return todo, nil
}

func (tr *TodosRepository) Delete(ctx context.Context, owner uuid.UUID, id int64) error {
	ct, err := tr.conn.Exec(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2;`, id, owner)
	if err != nil {
		return errors.New("deleting todo error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrTodoNotFound
	}
	return nil
}

func scanTodo(row pgx.Row) (*entity.Todo, error) {
	var (
		todo       entity.Todo
		status     string
		targetDate time.Time
	)
	if err := row.Scan(&todo.ID, &todo.UserID, &todo.Task, &status, &targetDate, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
		return nil, err
	}
	todo.Status = entity.Status(status)
	todo.TargetDate = entity.DateOf(targetDate)
	return &todo, nil
}
