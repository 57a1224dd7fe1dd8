package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/limbo/todoboard/internal/api"
	"github.com/limbo/todoboard/internal/repository"
	"github.com/limbo/todoboard/internal/service"
	"github.com/limbo/todoboard/pkg/captcha"
	"github.com/limbo/todoboard/pkg/cleanup"
	"github.com/limbo/todoboard/pkg/config"
	jwtservice "github.com/limbo/todoboard/pkg/jwt_service"
	"github.com/limbo/todoboard/pkg/logging"
	"github.com/limbo/todoboard/pkg/oauth"
	"github.com/limbo/todoboard/pkg/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func init() {
	service.InitValidator()
}

func main() {
	logging.Setup()
	if err := run(); err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
		cleanup.CleanUp()
		os.Exit(1)
	}
	cleanup.CleanUp()
}

func run() error {
	cfg := config.New()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg := repository.PGCfg{
		URL:      cfg.GetString("DATABASE_URL"),
		Address:  cfg.GetString("POSTGRES_DB_ADDRESS"),
		Username: cfg.GetString("POSTGRES_USER"),
		Password: cfg.GetString("POSTGRES_PASSWORD"),
		DB:       cfg.GetString("POSTGRES_DB"),
	}
	if cfg.GetBool("RUN_MIGRATIONS", false) {
		if err := repository.Migrate(&dbCfg, cfg.GetStringOr("MIGRATIONS_DIR", "./migrations")); err != nil {
			return err
		}
		slog.Info("migrations applied")
	}
	pool, err := repository.NewPool(ctx, &dbCfg)
	if err != nil {
		return err
	}
	loc := cfg.GetLocation("APP_TIMEZONE")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	stats := service.NewStatsService(repository.NewStatsRepo(pool), reg, loc)
	sched := scheduler.New(loc)
	if _, err = sched.ScheduleInterval(cfg.GetDuration("STATS_INTERVAL", 5*time.Minute), stats.Job(30*time.Second)); err != nil {
		return err
	}
	// overdue counts change at midnight even without writes
	if _, err = sched.ScheduleDaily("00:00", stats.Job(30*time.Second)); err != nil {
		return err
	}
	sched.Start()
	cleanup.Register(&cleanup.Job{Name: "stopping scheduler", F: sched.Stop})
	go stats.Job(30 * time.Second)()

	verifier := captcha.New(cfg.GetString("TURNSTILE_SECRET_KEY"))
	if !verifier.Enabled() {
		slog.Warn("captcha disabled: TURNSTILE_SECRET_KEY is empty")
	}
	google := oauth.NewGoogle(oauth.GoogleConfig{
		ClientID:     cfg.GetString("GOOGLE_CLIENT_ID"),
		ClientSecret: cfg.GetString("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  cfg.GetString("GOOGLE_REDIRECT_URL"),
	})
	secret := cfg.GetString("JWT_SECRET")
	if secret == "" {
		slog.Warn("JWT_SECRET is empty, sessions are forgeable")
	}

	serv := api.New(&api.ServicesList{
		UserService:  service.NewUserService(repository.NewUsersRepo(pool)),
		TodosService: service.NewTodosService(repository.NewTodosRepo(pool)),
		JWTService:   jwtservice.New(secret, cfg.GetDuration("SESSION_TTL", jwtservice.DefaultTTL)),
		Captcha:      verifier,
		OAuth:        google,
		DB:           repository.NewPinger(pool),
		Registry:     reg,
	},
		api.WithSessionCookie(cfg.GetStringOr("SESSION_COOKIE", api.DefaultSessionCookie), cfg.GetBool("COOKIE_SECURE", false)),
		api.WithCaptcha(cfg.GetString("TURNSTILE_SITE_KEY"), cfg.GetStringSlice("CAPTCHA_ENDPOINTS", api.DefaultCaptchaEndpoints)),
		api.WithCORSOrigins(cfg.GetStringSlice("CORS_ORIGINS", []string{"http://localhost:3000"})),
		api.WithLocation(loc),
	)
	return serv.Run(ctx, cfg.GetStringOr("API_ADDRESS", ":8080"))
}
