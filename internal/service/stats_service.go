package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/limbo/todoboard/internal/repository"
	"github.com/limbo/todoboard/pkg/entity"
	"github.com/prometheus/client_golang/prometheus"
)

// StatsService keeps gauges about stored users and todos fresh. Refresh is driven by the scheduler.
type StatsService struct {
	repo repository.StatsRepositoryI
	loc  *time.Location
	now  func() time.Time

	users        prometheus.Gauge
	onboarding   prometheus.Gauge
	todos        *prometheus.GaugeVec
	overdueTodos prometheus.Gauge
}

func NewStatsService(repo repository.StatsRepositoryI, reg prometheus.Registerer, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.Local
	}
	s := &StatsService{
		repo: repo,
		loc:  loc,
		now:  time.Now,
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "todoboard",
			Name:      "users",
			Help:      "Registered users.",
		}),
		onboarding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "todoboard",
			Name:      "users_pending_onboarding",
			Help:      "Users that have not claimed a username yet.",
		}),
		todos: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "todoboard",
			Name:      "todos",
			Help:      "Stored todos by status.",
		}, []string{"status"}),
		overdueTodos: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "todoboard",
			Name:      "todos_overdue",
			Help:      "Todos not done whose target date has passed.",
		}),
	}
	reg.MustRegister(s.users, s.onboarding, s.todos, s.overdueTodos)
	return s
}

func (s *StatsService) Refresh(ctx context.Context) error {
	users, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	pending, err := s.repo.CountPendingOnboarding(ctx)
	if err != nil {
		return err
	}
	counts, err := s.repo.CountTodosByStatus(ctx)
	if err != nil {
		return err
	}
	overdue, err := s.repo.CountOverdue(ctx, entity.DateOf(s.now().In(s.loc)))
	if err != nil {
		return err
	}
	s.users.Set(float64(users))
	s.onboarding.Set(float64(pending))
	for _, status := range entity.Statuses {
		s.todos.WithLabelValues(string(status)).Set(0)
	}
	for _, c := range counts {
		s.todos.WithLabelValues(string(c.Status)).Set(float64(c.Count))
	}
	s.overdueTodos.Set(float64(overdue))
	return nil
}

// Job adapts Refresh to the scheduler's func() signature.
func (s *StatsService) Job(timeout time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				slog.Warn("stats refresh timed out", slog.Duration("timeout", timeout))
				return
			}
			slog.Error("stats refresh failed", slog.String("error", err.Error()))
			return
		}
		slog.Debug("stats refreshed")
	}
}
