package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"blogify/application/commands/bus"
	querybus "blogify/application/queries/bus"
	"blogify/application/ports"
	"blogify/interfaces/http/rest/handlers"
	"blogify/interfaces/http/rest/middleware"
	pkgerrors "blogify/pkg/errors"
	"blogify/pkg/ratelimit"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Options holds the router's collaborators. Metrics, Limiter and Ready
// may be nil.
type Options struct {
	CommandBus     *bus.CommandBus
	QueryBus       *querybus.QueryBus
	Sessions       ports.SessionProvider
	Navigator      ports.Navigator
	Limiter        ratelimit.Limiter
	LimitWindow    string
	Metrics        MetricsHandler
	Ready          ReadinessCheck
	AllowedOrigins []string
	Debug          bool
}

// MetricsHandler exposes request metrics.
type MetricsHandler interface {
	middleware.HTTPMetrics
	Handler() http.Handler
}

// Router creates and configures the HTTP router
type Router struct {
	opts   Options
	errs   *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(opts Options, logger *zap.Logger) *Router {
	if opts.LimitWindow == "" {
		opts.LimitWindow = "minute"
	}
	return &Router{
		opts:   opts,
		errs:   pkgerrors.NewErrorHandler(logger, opts.Debug),
		logger: logger,
	}
}

// Setup mounts the shell API and the public read API.
func (rt *Router) Setup() http.Handler {
	router := rt.base()

	router.Route("/api/v1", func(r chi.Router) {
		rt.mountPublic(r)
		rt.mountShell(r)
	})
	return router
}

// SetupPublic mounts only the public read API, for deployments that run
// without a shell session.
func (rt *Router) SetupPublic() http.Handler {
	router := rt.base()
	router.Route("/api/v1", rt.mountPublic)
	return router
}

func (rt *Router) base() chi.Router {
	router := chi.NewRouter()

	var metrics middleware.HTTPMetrics
	if rt.opts.Metrics != nil {
		metrics = rt.opts.Metrics
	}

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestContext)
	router.Use(middleware.Logger(rt.logger, metrics))
	router.Use(rt.errs.Middleware)

	origins := rt.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Location", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errs.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errs.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.opts.Metrics.Handler())
	}
	return router
}

func (rt *Router) mountPublic(r chi.Router) {
	posts := handlers.NewPostHandler(rt.opts.CommandBus, rt.opts.QueryBus, rt.errs, rt.logger)

	r.Route("/public", func(r chi.Router) {
		if rt.opts.Limiter != nil {
			r.Use(middleware.RateLimit(rt.opts.Limiter, rt.opts.LimitWindow, rt.errs, rt.logger))
		}
		r.Get("/posts/ids", posts.ListIDs)
		r.Get("/posts/{postID}", posts.Get)
	})
}

func (rt *Router) mountShell(r chi.Router) {
	sessions := handlers.NewSessionHandler(rt.opts.CommandBus, rt.opts.Sessions, rt.errs, rt.logger)
	location := handlers.NewLocationHandler(rt.opts.Navigator, rt.errs)
	feed := handlers.NewFeedHandler(rt.opts.QueryBus, rt.errs, rt.logger)
	posts := handlers.NewPostHandler(rt.opts.CommandBus, rt.opts.QueryBus, rt.errs, rt.logger)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", sessions.Current)
		r.Post("/", sessions.SignIn)
		r.Delete("/", sessions.SignOut)
	})

	r.Get("/location", location.Get)
	r.Put("/location", location.Put)

	r.Get("/feed", feed.Feed)
	r.Post("/feed/more", feed.LoadMore)

	r.With(middleware.RequireSession(rt.opts.Sessions, rt.errs)).Post("/posts", posts.Create)
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.opts.Ready != nil {
		if err := rt.opts.Ready(req.Context()); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			rt.errs.HandleStatus(w, req, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
