package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/BNLNPPS/swf-monitor/internal/broadcast"
	"github.com/BNLNPPS/swf-monitor/internal/config"
	"github.com/BNLNPPS/swf-monitor/internal/database"
	"github.com/BNLNPPS/swf-monitor/internal/domain"
	"github.com/BNLNPPS/swf-monitor/internal/ingest"
	"github.com/BNLNPPS/swf-monitor/internal/logging"
	"github.com/BNLNPPS/swf-monitor/internal/relay"
	"github.com/BNLNPPS/swf-monitor/internal/server"
	"github.com/BNLNPPS/swf-monitor/internal/subscriber"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, redisURL string) *goredis.Client {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		os.Exit(1)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupDB(ctx context.Context, databaseURL string) *pgxpool.Pool {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := database.Connect(connectCtx, databaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(connectCtx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func runGracefulShutdown(srv *server.Server, broadcaster *broadcast.Broadcaster, channel relay.Channel, cancelWorkers context.CancelFunc, workers *sync.WaitGroup) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelWorkers()
		workers.Wait()

		broadcaster.Stop()
		if err := channel.Close(); err != nil {
			slog.Error("Relay channel close error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Relay starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"relay_backend", cfg.RelayBackend,
		"ingest_enabled", cfg.IngestEnabled,
	)

	var redisClient *goredis.Client
	var channel relay.Channel
	switch cfg.RelayBackend {
	case config.BackendRedis:
		redisClient = setupRedis(context.Background(), cfg.RedisURL)
		defer func() { _ = redisClient.Close() }()
		channel = relay.NewRedisChannel(redisClient, cfg.RelayGroup)
	default:
		channel = relay.NewMemoryChannel()
	}

	var store domain.EventStore = database.NoopStore{}
	var agents domain.AgentRegistry = database.NoopStore{}
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool = setupDB(context.Background(), cfg.DatabaseURL)
		defer pool.Close()
		store = database.NewMessageStore(pool)
		agents = database.NewAgentStore(pool)
	} else {
		slog.Warn("No DATABASE_URL configured; relayed events will not be persisted")
	}

	broadcaster := broadcast.NewBroadcaster(clock, cfg.QueueSize, int(cfg.MaxClients))

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	workers.Add(1)
	go func() {
		defer workers.Done()
		subscriber.New(channel, broadcaster).Run(workerCtx)
	}()

	if cfg.IngestEnabled {
		listener := ingest.NewListener(ingest.Options{
			Addr:     cfg.StompAddr(),
			User:     cfg.StompUser,
			Password: cfg.StompPassword,
			Topic:    cfg.StompTopic,
		}, store, agents, channel, clock)

		workers.Add(1)
		go func() {
			defer workers.Done()
			listener.Run(workerCtx)
		}()
	}

	srv := server.NewServer(cfg, broadcaster, clock, redisClient, pool)

	done := runGracefulShutdown(srv, broadcaster, channel, cancelWorkers, &workers)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
