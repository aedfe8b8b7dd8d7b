package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kizunaapp/kizuna/internal/auth"
	"github.com/kizunaapp/kizuna/internal/clock"
	"github.com/kizunaapp/kizuna/internal/config"
	"github.com/kizunaapp/kizuna/internal/generator"
	"github.com/kizunaapp/kizuna/internal/queue"
	"github.com/kizunaapp/kizuna/internal/service"
	"github.com/kizunaapp/kizuna/internal/storage"
	"github.com/kizunaapp/kizuna/internal/storage/postgres"
	"github.com/kizunaapp/kizuna/internal/storage/sqlite"
	transporthttp "github.com/kizunaapp/kizuna/internal/transport/http"
	"github.com/kizunaapp/kizuna/pkg/logging"
)

func main() {
	logging.Setup()

	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.StoreDriver)

	clk := clock.Real{}
	gen := generator.NewClient(cfg.BotURL, cfg.BotAppKey, cfg.GenerateTimeout)

	challenges := service.NewChallengeService(store, gen, clk)
	handlers := &transporthttp.Handlers{
		Auth:        auth.NewPasswordAuthenticator(store),
		Tokens:      auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration),
		Groups:      service.NewGroupService(store, clk),
		Preferences: service.NewPreferenceService(store, clk),
		Challenges:  challenges,
		Scheduler:   service.NewSchedulerService(store, challenges, clk),
	}

	// Background tick workers run only when Redis is configured; without it
	// the tick is driven by POST /internal/tick.
	if cfg.RedisURL != "" {
		if err := startTickWorkers(ctx, cfg.RedisURL, handlers.Scheduler); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h2c.NewHandler(transporthttp.NewRouter(handlers), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	if cfg.StoreDriver == "postgres" {
		return postgres.Connect(ctx, cfg.PostgresDSN)
	}
	return sqlite.New(cfg.DBPath)
}

// startTickWorkers registers the hourly cron tick and its handler.
func startTickWorkers(ctx context.Context, redisURL string, scheduler *service.SchedulerService) error {
	worker, err := queue.NewAsynqServer(redisURL)
	if err != nil {
		return err
	}
	worker.Register(queue.TaskTypeTick, queue.TickHandler(scheduler))

	cron, err := queue.NewAsynqScheduler(redisURL)
	if err != nil {
		return err
	}
	if err := cron.RegisterCron(queue.TickCron, queue.Task{Type: queue.TaskTypeTick}); err != nil {
		return err
	}

	go func() {
		if err := worker.Run(ctx); err != nil {
			slog.Error("Tick worker failed", "error", err)
		}
	}()
	go func() {
		if err := cron.Run(ctx); err != nil {
			slog.Error("Tick scheduler failed", "error", err)
		}
	}()

	slog.Info("Tick workers started", "cron", queue.TickCron)
	return nil
}
