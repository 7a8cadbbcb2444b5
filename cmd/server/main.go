package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/scruffychan/polly/internal/aggregate"
	"github.com/scruffychan/polly/internal/app"
	"github.com/scruffychan/polly/internal/broadcast"
	"github.com/scruffychan/polly/internal/chat"
	"github.com/scruffychan/polly/internal/config"
	"github.com/scruffychan/polly/internal/database"
	"github.com/scruffychan/polly/internal/domain"
	"github.com/scruffychan/polly/internal/logging"
	"github.com/scruffychan/polly/internal/redis"
	"github.com/scruffychan/polly/internal/retry"
	"github.com/scruffychan/polly/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// The database may come up after us in orchestrated deployments
	connectPolicy := retry.Policy{
		MaxAttempts:      5,
		InitialBackoff:   500 * time.Millisecond,
		RateLimitBackoff: 5 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Database connect failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	pool, err := retry.Do(ctx, connectPolicy, func(error) retry.Action { return retry.Retry }, func() (*pgxpool.Pool, error) {
		return database.Connect(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Redis ping failed", "error", err)
		os.Exit(1)
	}

	return client
}

func runGracefulShutdown(cfg *config.Config, srv *server.Server, broadcaster *broadcast.Broadcaster) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()

		close(done)
	}()

	return done
}

func main() {
	_ = godotenv.Load()

	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	messageRepo := database.NewMessageRepo(pool)
	userRepo := database.NewUserRepo(pool)
	questionRepo := database.NewQuestionRepo(pool)
	voteRepo := database.NewVoteRepo(pool)
	paperRepo := database.NewPaperRepo(pool)
	feedbackRepo := database.NewFeedbackRepo(pool)

	aggregator := aggregate.New(messageRepo, clock)

	// With Redis configured, every broadcast goes through the per-question
	// channel and comes back via the fan-out subscription, so multi-instance
	// deployments stay consistent. Without it, payloads go straight to the
	// local broadcaster. Either way the last viewer leaving drops the
	// question's sentiment tracker, so it re-seeds from storage on the next
	// message.
	var (
		redisClient *redis.Client
		publisher   domain.EventPublisher
		broadcaster *broadcast.Broadcaster
	)
	if cfg.RedisEnabled() {
		redisClient = setupRedis(cfg)
		defer func() { _ = redisClient.Close() }()

		fanout := redis.NewFanout(redisClient, func(questionID int64, payload []byte) {
			broadcaster.Publish(questionID, payload)
		})
		defer fanout.Close()

		onIdle := func(questionID int64) {
			fanout.Unfollow(questionID)
			aggregator.Forget(questionID)
		}
		broadcaster = broadcast.NewBroadcaster(fanout.Follow, onIdle, clock, cfg.MaxClientsPerQuestion)
		publisher = fanout
	} else {
		broadcaster = broadcast.NewBroadcaster(nil, aggregator.Forget, clock, cfg.MaxClientsPerQuestion)
		publisher = broadcast.NewLocalPublisher(broadcaster)
	}
	pipeline := chat.NewPipeline(messageRepo, userRepo, aggregator, publisher, clock)
	appSvc := app.NewService(userRepo, questionRepo, voteRepo, paperRepo, feedbackRepo)

	// Pass nil explicitly when Redis is off to avoid a typed-nil interface
	var srv *server.Server
	if redisClient != nil {
		srv = server.NewServer(cfg, appSvc, pipeline, broadcaster, pool, redisClient)
	} else {
		srv = server.NewServer(cfg, appSvc, pipeline, broadcaster, pool, nil)
	}

	done := runGracefulShutdown(cfg, srv, broadcaster)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
