package repository

import (
	"context"
	"errors"

	"github.com/limbo/todoboard/pkg/entity"
)

type StatsRepository struct {
	conn PgConnection
}

func NewStatsRepo(conn PgConnection) *StatsRepository {
	return &StatsRepository{
		conn: conn,
	}
}

func (sr *StatsRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := sr.conn.QueryRow(ctx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return 0, errors.New("counting users error: " + err.Error())
	}
	return n, nil
}

func (sr *StatsRepository) CountPendingOnboarding(ctx context.Context) (int, error) {
	var n int
	if err := sr.conn.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username IS NULL;`).Scan(&n); err != nil {
		return 0, errors.New("counting users without username error: " + err.Error())
	}
	return n, nil
}

func (sr *StatsRepository) CountTodosByStatus(ctx context.Context) ([]entity.StatusCount, error) {
	rows, err := sr.conn.Query(ctx, `SELECT status::text, COUNT(*) FROM todos GROUP BY status;`)
	if err != nil {
		return nil, errors.New("counting todos by status error: " + err.Error())
	}
	defer rows.Close()
	counts := make([]entity.StatusCount, 0, len(entity.Statuses))
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.New("unmarshalling status count error: " + err.Error())
		}
		counts = append(counts, entity.StatusCount{Status: entity.Status(status), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New("unexpected error after scanning status counts: " + err.Error())
	}
	return counts, nil
}

func (sr *StatsRepository) CountOverdue(ctx context.Context, today entity.Date) (int, error) {
	var n int
	row := sr.conn.QueryRow(ctx, `SELECT COUNT(*) FROM todos WHERE status <> 'DONE' AND target_date < $1;`, today.Time)
	if err := row.Scan(&n); err != nil {
		return 0, errors.New("counting overdue todos error: " + err.Error())
	}
	return n, nil
}
