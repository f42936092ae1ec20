package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rirranges/internal/config"
	"rirranges/internal/handler"
	"rirranges/internal/logger"
	"rirranges/internal/repository"
	"rirranges/internal/service"
)

var (
	lastLogTime atomic.Value
	logMutex    sync.Mutex
)

func init() {
	lastLogTime.Store(time.Now())
}

type backends struct {
	sinks []service.Sink
	repo  service.Repository
	cache service.Cache
	close []func() error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	b, err := buildBackends(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize sinks", zap.Error(err))
	}
	defer func() {
		for _, closeFn := range b.close {
			if err := closeFn(); err != nil {
				log.Warn("Error closing backend", zap.Error(err))
			}
		}
	}()

	rirSvc := service.NewRIRService(log, cfg.FetchTimeout)
	rangeSvc := service.NewRangeService(rirSvc, b.sinks, b.repo, b.cache, cfg, log)

	if !cfg.Serve {
		log.Info("Running one-shot update", zap.Strings("sinks", cfg.SinkNames()))
		if err := rangeSvc.UpdateRanges(ctx); err != nil {
			log.Fatal("Ranges update failed", zap.Error(err))
		}
		log.Info("Update complete")
		return
	}

	log.Info("Starting up server...")

	if err := rangeSvc.Start(ctx); err != nil {
		log.Fatal("Failed to start range service", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(requestLogger(log))

	h := handler.NewHandler(rangeSvc, log)
	h.RegisterRoutes(app)

	go func() {
		if err := app.Listen(cfg.ServerPort); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}
}

func buildBackends(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}

	for _, name := range cfg.SinkNames() {
		switch name {
		case "file":
			b.sinks = append(b.sinks, repository.NewFileSink(cfg.OutputDir, log))

		case "postgres":
			db, err := sqlx.Connect("postgres", cfg.PostgresURL)
			if err != nil {
				return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
			}
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(25)
			db.SetConnMaxLifetime(5 * time.Minute)
			b.close = append(b.close, db.Close)

			postgresRepo := repository.NewPostgresRepository(db, log)
			if err := postgresRepo.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("creating schema: %w", err)
			}
			b.sinks = append(b.sinks, postgresRepo)
			b.repo = postgresRepo

		case "redis":
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("parsing Redis URL: %w", err)
			}
			redisClient := redis.NewClient(opt)
			b.close = append(b.close, redisClient.Close)

			redisRepo := repository.NewRedisRepository(redisClient, log)
			b.sinks = append(b.sinks, redisRepo)
			b.cache = redisRepo

		case "r2":
			client, err := repository.NewR2Client(ctx, cfg.R2)
			if err != nil {
				return nil, err
			}
			b.sinks = append(b.sinks, repository.NewObjectStoreSink(client, cfg.R2.Bucket, cfg.R2.Prefix, log))

		default:
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}

	if len(b.sinks) == 0 && !cfg.Serve {
		return nil, fmt.Errorf("no sinks configured")
	}

	return b, nil
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		// Always log errors and slow requests
		if err != nil || latency > 100*time.Millisecond || c.Response().StatusCode() != 200 {
			log.Info("request",
				zap.Int("status", c.Response().StatusCode()),
				zap.Duration("latency", latency),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return err
		}

		// Check if 10 seconds have passed since last log
		last := lastLogTime.Load().(time.Time)
		if time.Since(last) >= 10*time.Second {
			logMutex.Lock()
			if time.Since(lastLogTime.Load().(time.Time)) >= 10*time.Second {
				log.Info("sampled_request",
					zap.Int("status", c.Response().StatusCode()),
					zap.Duration("latency", latency),
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
				)
				lastLogTime.Store(time.Now())
			}
			logMutex.Unlock()
		}

		return err
	}
}
