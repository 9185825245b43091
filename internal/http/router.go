package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/attendhub/internal/cache"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/geocoder89/attendhub/internal/http/handlers"
	"github.com/geocoder89/attendhub/internal/http/middlewares"
	"github.com/geocoder89/attendhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Log    *slog.Logger
	Env    string
	Events handlers.EventsRepo
	Users  handlers.UsersRepo
	Tokens interface {
		handlers.TokenIssuer
		middlewares.TokenVerifier
	}
	Media   handlers.Uploader
	Cleaner handlers.Remover
	Cache   cache.Store

	// Ready is checked by /readyz; nil entries are skipped.
	Ready map[string]handlers.Pinger

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Tracing            bool
	ServiceName        string
	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	// AuthRateLimit caps login and register attempts per client per minute.
	AuthRateLimit int
	// AttendanceLimit caps join and leave calls per user per minute.
	AttendanceLimit int

	// StaticPath and StaticDir serve locally stored media when set.
	StaticPath string
	StaticDir  string
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	r.Use(gin.Recovery())
	if d.Tracing {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSAllowedOrigins))

	health := handlers.NewHealthHandler(d.Ready)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	if d.StaticPath != "" && d.StaticDir != "" {
		r.Static(d.StaticPath, d.StaticDir)
	}

	authMW := middlewares.NewAuthMiddleware(d.Tokens, d.Users)
	requireAuth := authMW.RequireAuth()
	requireAdmin := authMW.RequireRole(user.RoleAdmin)

	authLimiter := middlewares.NewRateLimiter(orDefault(d.AuthRateLimit, 20), time.Minute).
		RateLimiterMiddleware(middlewares.KeyByIP)
	// runs after requireAuth so the key is the caller, not a shared NAT address
	attendLimiter := middlewares.NewRateLimiter(orDefault(d.AttendanceLimit, 60), time.Minute).
		RateLimiterMiddleware(middlewares.KeyByUserOrIP)

	events := handlers.NewEventsHandler(d.Events, d.Media, d.Cleaner, d.Cache)
	users := handlers.NewUsersHandler(d.Users, d.Tokens, d.Media, d.Cleaner, d.Cache)

	api := r.Group("/api/v1")
	api.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))
	api.Use(middlewares.RequireJSONOrMultipart())

	// gin allows one wildcard name per segment, so every id segment is :id
	api.GET("/events", events.ListEvents)
	api.GET("/events/:id", events.GetEventByID)
	api.GET("/events/:id/attendees", events.ListAttendees)
	api.POST("/events", requireAuth, requireAdmin, events.CreateEvent)
	api.PUT("/events/:id", requireAuth, requireAdmin, events.UpdateEvent)
	api.DELETE("/events/:id", requireAuth, requireAdmin, events.DeleteEvent)
	api.POST("/events/:id/attendants", requireAuth, attendLimiter, events.AddAttendant)
	api.DELETE("/events/:id/attendants", requireAuth, attendLimiter, events.RemoveAttendant)

	api.POST("/users/register", authLimiter, users.Register)
	api.POST("/users/login", authLimiter, users.Login)
	api.GET("/users", requireAuth, requireAdmin, users.ListUsers)
	api.GET("/users/:id", requireAuth, users.GetUserByID)
	api.PUT("/users/:id", requireAuth, authMW.RequireSelfOrAdmin("id"), users.UpdateUser)
	api.DELETE("/users/:id", requireAuth, requireAdmin, users.DeleteUser)

	r.NoRoute(handlers.RouteNotFound)

	return r
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
