package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/limbo/todoboard/internal/service"
	"github.com/limbo/todoboard/pkg/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statsRepoMock struct {
	broken    bool
	overdueAt entity.Date
}

func (m *statsRepoMock) CountUsers(ctx context.Context) (int, error) {
	if m.broken {
		return 0, errDB
	}
	return 3, nil
}

func (m *statsRepoMock) CountPendingOnboarding(ctx context.Context) (int, error) {
	return 1, nil
}

func (m *statsRepoMock) CountTodosByStatus(ctx context.Context) ([]entity.StatusCount, error) {
	return []entity.StatusCount{{Status: entity.StatusTodo, Count: 4}, {Status: entity.StatusDone, Count: 2}}, nil
}

func (m *statsRepoMock) CountOverdue(ctx context.Context, today entity.Date) (int, error) {
	m.overdueAt = today
	return 5, nil
}

func TestStatsRefresh(t *testing.T) {
	repo := &statsRepoMock{}
	reg := prometheus.NewRegistry()
	stats := service.NewStatsService(repo, reg, time.UTC)

	require.NoError(t, stats.Refresh(context.Background()))
	assert.Equal(t, entity.DateOf(time.Now().UTC()), repo.overdueAt)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	// users, pending, overdue and three status series
	assert.Equal(t, 6, count)

	expected := `
# HELP todoboard_todos Stored todos by status.
# TYPE todoboard_todos gauge
todoboard_todos{status="DOING"} 0
todoboard_todos{status="DONE"} 2
todoboard_todos{status="TODO"} 4
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "todoboard_todos"))

	repo.broken = true
	assert.Error(t, stats.Refresh(context.Background()))
	// a failed refresh keeps the last values
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "todoboard_todos"))
	stats.Job(time.Second)()
}
