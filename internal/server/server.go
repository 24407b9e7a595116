package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/BNLNPPS/swf-monitor/internal/broadcast"
	"github.com/BNLNPPS/swf-monitor/internal/config"
)

type Server struct {
	echo          *echo.Echo
	config        *config.Config
	broadcaster   *broadcast.Broadcaster
	clock         clockwork.Clock
	redisClient   *goredis.Client // nil with the memory backend
	db            *pgxpool.Pool   // nil without a durable store
	globalLimiter *GlobalConnectionLimiter
	rateLimiter   *ConnectionRateLimiter
	startTime     time.Time
}

// NewServer wires the HTTP layer around the broadcaster. redisClient
// and db may be nil; the matching readiness checks are then skipped.
func NewServer(cfg *config.Config, broadcaster *broadcast.Broadcaster, clock clockwork.Clock, redisClient *goredis.Client, db *pgxpool.Pool) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	burst := int(cfg.ConnectionsPerSec)
	if burst < 1 {
		burst = 1
	}

	srv := &Server{
		echo:          e,
		config:        cfg,
		broadcaster:   broadcaster,
		clock:         clock,
		redisClient:   redisClient,
		db:            db,
		globalLimiter: NewGlobalConnectionLimiter(cfg.MaxClients),
		rateLimiter:   NewConnectionRateLimiter(cfg.ConnectionsPerSec, burst),
		startTime:     clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
