package service

import (
	"slices"
	"time"

	"github.com/limbo/todoboard/pkg/entity"
)

type Board struct {
	Order   entity.SortOrder `json:"order"`
	Today   entity.Date      `json:"today"`
	Columns []BoardColumn    `json:"columns"`
}

type BoardColumn struct {
	Status entity.Status `json:"status"`
	Count  int           `json:"count"`
	Todos  []BoardCard   `json:"todos"`
}

type BoardCard struct {
	entity.Todo
	Label string `json:"label"`
}

// BuildBoard splits todos into TODO, DOING and DONE columns. Each column is sorted by target
// date in order; equal dates keep their input order. Labels are computed against now, whose
// location decides which day is today.
func BuildBoard(todos []*entity.Todo, order entity.SortOrder, now time.Time) *Board {
	if order != entity.OrderAsc {
		order = entity.OrderDesc
	}
	board := &Board{
		Order:   order,
		Today:   entity.DateOf(now),
		Columns: make([]BoardColumn, len(entity.Statuses)),
	}
	index := make(map[entity.Status]int, len(entity.Statuses))
	for i, status := range entity.Statuses {
		board.Columns[i] = BoardColumn{Status: status, Todos: make([]BoardCard, 0)}
		index[status] = i
	}
	for _, todo := range todos {
		i, ok := index[todo.Status]
		if !ok {
			continue
		}
		board.Columns[i].Todos = append(board.Columns[i].Todos, BoardCard{
			Todo:  *todo,
			Label: entity.UrgencyLabel(todo.TargetDate, todo.Status, now),
		})
	}
	for i := range board.Columns {
		col := &board.Columns[i]
		slices.SortStableFunc(col.Todos, func(a, b BoardCard) int {
			c := a.TargetDate.Compare(b.TargetDate.Time)
			if order == entity.OrderDesc {
				return -c
			}
			return c
		})
		col.Count = len(col.Todos)
	}
	return board
}
