package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/limbo/todoboard/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultSessionCookie = "todoboard_session"
	shutdownTimeout      = 10 * time.Second
)

var DefaultCaptchaEndpoints = []string{"/sign-up/email", "/sign-in/username"}

type Server struct {
	mx           *chi.Mux
	userService  service.UserServiceI
	todosService service.TodosServiceI
	jwtService   JWTServiceI
	captcha      service.CaptchaVerifier
	oauth        service.OAuthProvider
	db           Pinger
	metrics      *Metrics
	opts         Options
}

type ServicesList struct {
	UserService  service.UserServiceI
	TodosService service.TodosServiceI
	JWTService   JWTServiceI
	Captcha      service.CaptchaVerifier
	OAuth        service.OAuthProvider
	DB           Pinger
	// Registry receives HTTP metrics and is served on /metrics. A private one is created when nil.
	Registry *prometheus.Registry
}

type Options struct {
	SessionCookie    string
	CookieSecure     bool
	CaptchaEndpoints []string
	CaptchaSiteKey   string
	CORSOrigins      []string
	// Location decides "today" for urgency labels when the client sends no tz
	Location *time.Location
}

type Option func(*Options)

func WithSessionCookie(name string, secure bool) Option {
	return func(o *Options) {
		if name != "" {
			o.SessionCookie = name
		}
		o.CookieSecure = secure
	}
}

func WithCaptcha(siteKey string, endpoints []string) Option {
	return func(o *Options) {
		o.CaptchaSiteKey = siteKey
		if endpoints != nil {
			o.CaptchaEndpoints = endpoints
		}
	}
}

func WithCORSOrigins(origins []string) Option {
	return func(o *Options) { o.CORSOrigins = origins }
}

func WithLocation(loc *time.Location) Option {
	return func(o *Options) {
		if loc != nil {
			o.Location = loc
		}
	}
}

func New(servicesOptions *ServicesList, opts ...Option) *Server {
	options := Options{
		SessionCookie:    DefaultSessionCookie,
		CaptchaEndpoints: DefaultCaptchaEndpoints,
		Location:         time.Local,
	}
	for _, opt := range opts {
		opt(&options)
	}
	reg := servicesOptions.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		mx:           chi.NewMux(),
		userService:  servicesOptions.UserService,
		todosService: servicesOptions.TodosService,
		jwtService:   servicesOptions.JWTService,
		captcha:      servicesOptions.Captcha,
		oauth:        servicesOptions.OAuth,
		db:           servicesOptions.DB,
		metrics:      NewMetrics(reg),
		opts:         options,
	}
	s.mountHandlers()
	return s
}

func (s *Server) mountHandlers() {
	r := s.mx
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.RequestIDMiddleware)
	r.Use(s.SettingUpLoggerMiddleware)
	r.Use(s.metrics.Middleware)
	r.Use(s.GuardMiddleware)

	r.Get("/health", s.Health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Get("/", s.PageState)
	r.Get("/login", s.PageState)
	r.Get("/register", s.PageState)
	r.Get("/dashboard", s.Dashboard)
	r.Get("/onboarding", s.OnboardingPage)
	r.Post("/onboarding", s.CompleteOnboarding)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(s.CaptchaMiddleware("/sign-up/email")).Post("/sign-up/email", s.Register)
		r.With(s.CaptchaMiddleware("/sign-in/username")).Post("/sign-in/username", s.LoginByUsername)
		r.With(s.CaptchaMiddleware("/sign-in/email")).Post("/sign-in/email", s.LoginByEmail)
		r.Post("/sign-out", s.SignOut)
		r.Get("/get-session", s.GetSession)
		r.Get("/sign-in/social/google", s.GoogleSignIn)
		r.Get("/callback/google", s.GoogleCallback)
	})
	r.Post("/api/login", s.LegacyLogin)

	r.Route("/api/todos", func(r chi.Router) {
		r.Use(s.AuthMiddleware)
		r.Use(s.LoggerExtensionMiddleware)
		r.Get("/", s.ListTodos)
		r.Post("/", s.CreateTodo)
		r.Get("/board", s.TodoBoard)
		r.Put("/{id}", s.UpdateTodo)
		r.Patch("/{id}", s.UpdateTodo)
		r.Delete("/{id}", s.DeleteTodo)
		r.Post("/{id}/advance", s.AdvanceTodo)
	})
}

// Handler is the full stack: tracing, CORS, then the router.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "x-captcha-response", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
	})
	return otelhttp.NewHandler(c.Handler(s.mx), "todoboard")
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
