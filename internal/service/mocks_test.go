package service_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/todoboard/internal/error_values"
	"github.com/limbo/todoboard/pkg/entity"
)

var errDB = errors.New("db error")

// todosRepoMock keeps todos in memory and behaves like the SQL repository.
type todosRepoMock struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]entity.Todo
	owners map[uuid.UUID]bool
	broken bool
}

func newTodosRepoMock(owners ...uuid.UUID) *todosRepoMock {
	m := &todosRepoMock{rows: map[int64]entity.Todo{}, owners: map[uuid.UUID]bool{}}
	for _, o := range owners {
		m.owners[o] = true
	}
	return m
}

func (m *todosRepoMock) Create(ctx context.Context, todo *entity.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return errDB
	}
	if !m.owners[todo.UserID] {
		return errorvalues.ErrOwnerNotFound
	}
	m.nextID++
	now := time.Now()
	todo.ID = m.nextID
	todo.CreatedAt, todo.UpdatedAt = now, now
	m.rows[todo.ID] = *todo
	return nil
}

func (m *todosRepoMock) GetByID(ctx context.Context, owner uuid.UUID, id int64) (*entity.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return nil, errDB
	}
	row, ok := m.rows[id]
	if !ok || row.UserID != owner {
		return nil, errorvalues.ErrTodoNotFound
	}
	return &row, nil
}

func (m *todosRepoMock) ListByOwner(ctx context.Context, owner uuid.UUID, order entity.SortOrder) ([]*entity.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return nil, errDB
	}
	todos := make([]*entity.Todo, 0)
	for _, row := range m.rows {
		if row.UserID == owner {
			todos = append(todos, &row)
		}
	}
	slices.SortFunc(todos, func(a, b *entity.Todo) int {
		c := a.TargetDate.Compare(b.TargetDate.Time)
		if order == entity.OrderDesc {
			c = -c
		}
		if c == 0 {
			return int(b.ID - a.ID)
		}
		return c
	})
	return todos, nil
}

func (m *todosRepoMock) Update(ctx context.Context, owner uuid.UUID, id int64, patch entity.TodoPatch) (*entity.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return nil, errDB
	}
	row, ok := m.rows[id]
	if !ok || row.UserID != owner {
		return nil, errorvalues.ErrTodoNotFound
	}
	if patch.Task != nil {
		row.Task = *patch.Task
	}
	if patch.Status != nil {
		row.Status = *patch.Status
	}
	if patch.TargetDate != nil {
		row.TargetDate = *patch.TargetDate
	}
	row.UpdatedAt = time.Now()
	m.rows[id] = row
	return &row, nil
}

func (m *todosRepoMock) Delete(ctx context.Context, owner uuid.UUID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return errDB
	}
	row, ok := m.rows[id]
	if !ok || row.UserID != owner {
		return errorvalues.ErrTodoNotFound
	}
	delete(m.rows, id)
	return nil
}

// usersRepoMock keeps users in memory and counts writes.
type usersRepoMock struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*entity.User
	writes int
	broken bool
}

func newUsersRepoMock() *usersRepoMock {
	return &usersRepoMock{users: map[uuid.UUID]*entity.User{}}
}

func (m *usersRepoMock) Create(ctx context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return errDB
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return errorvalues.ErrEmailTaken
		}
		if user.HasUsername() && u.UsernameOrEmpty() == user.UsernameOrEmpty() {
			return errorvalues.ErrUsernameTaken
		}
		if user.GoogleID != nil && u.GoogleID != nil && *u.GoogleID == *user.GoogleID {
			return errorvalues.ErrUserExists
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	m.users[user.ID] = &stored
	m.writes++
	return nil
}

func (m *usersRepoMock) find(match func(u *entity.User) bool) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return nil, errDB
	}
	for _, u := range m.users {
		if match(u) {
			found := *u
			return &found, nil
		}
	}
	return nil, errorvalues.ErrUserNotFound
}

func (m *usersRepoMock) FindByID(ctx context.Context, uid uuid.UUID) (*entity.User, error) {
	return m.find(func(u *entity.User) bool { return u.ID == uid })
}

func (m *usersRepoMock) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return m.find(func(u *entity.User) bool { return u.Email == email })
}

func (m *usersRepoMock) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return m.find(func(u *entity.User) bool { return u.HasUsername() && *u.Username == username })
}

func (m *usersRepoMock) FindByGoogleID(ctx context.Context, googleID string) (*entity.User, error) {
	return m.find(func(u *entity.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID })
}

func (m *usersRepoMock) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.FindByUsername(ctx, username)
	if errors.Is(err, errorvalues.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *usersRepoMock) SetUsername(ctx context.Context, uid uuid.UUID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return errDB
	}
	for _, u := range m.users {
		if u.UsernameOrEmpty() == username && u.ID != uid {
			return errorvalues.ErrUsernameTaken
		}
	}
	u, ok := m.users[uid]
	if !ok {
		return errorvalues.ErrUserNotFound
	}
	u.Username = &username
	m.writes++
	return nil
}

func (m *usersRepoMock) LinkGoogle(ctx context.Context, uid uuid.UUID, googleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return errorvalues.ErrUserNotFound
	}
	u.GoogleID = &googleID
	m.writes++
	return nil
}

func (m *usersRepoMock) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
