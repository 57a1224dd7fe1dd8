package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Username     *string   `json:"username"`
	Firstname    string    `json:"firstname"`
	Lastname     string    `json:"lastname"`
	PasswordHash *string   `json:"-"`
	GoogleID     *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasUsername reports whether the user already claimed a handle.
func (u *User) HasUsername() bool {
	return u.Username != nil && *u.Username != ""
}

// UsernameOrEmpty dereferences Username.
func (u *User) UsernameOrEmpty() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}

type Todo struct {
	ID         int64     `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	Task       string    `json:"task"`
	Status     Status    `json:"status"`
	TargetDate Date      `json:"target_date"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TodoPatch holds the fields of a partial update. Nil means "leave as is".
type TodoPatch struct {
	Task       *string
	Status     *Status
	TargetDate *Date
}

func (p TodoPatch) Empty() bool {
	return p.Task == nil && p.Status == nil && p.TargetDate == nil
}

type StatusCount struct {
	Status Status
	Count  int
}
