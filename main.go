package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	bidding "credit-auction/internal/biddingService"
	"credit-auction/internal/cache"
	"credit-auction/internal/config"
	"credit-auction/internal/events"
	"credit-auction/internal/postgres"
	"credit-auction/internal/registry"
	"credit-auction/internal/repository"
	"credit-auction/internal/scheduler"
	"credit-auction/internal/server"
	"credit-auction/internal/settlement"
	"credit-auction/internal/ws"
	handler "credit-auction/services/auction/handler"
	"credit-auction/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	utils.ConfigureLogger(cfg.Logging.Level, cfg.Logging.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := buildRepo(ctx, cfg)
	if err != nil {
		utils.Fatal("failed to initialize bid store", map[string]any{"error": err.Error()})
	}

	reg := registry.New(cfg.Retention)
	hub := ws.NewHub()

	var sinks []events.Sink
	sinks = append(sinks, hub)

	var snapshots *cache.Client
	if cfg.RedisAddr != "" {
		snapshots = cache.New(cfg.RedisAddr)
		defer snapshots.Close()
		sinks = append(sinks, snapshots)
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, 1024)
		producer.Start(ctx)
		sinks = append(sinks, events.NewKafkaSink(producer, cfg.ServiceName))
	}

	notifier := events.NewFanout(sinks...)

	auctionSvc := bidding.NewAuctionService(reg, repo, notifier)
	settler := settlement.NewCoordinator(reg, repo, notifier)

	sched := scheduler.New(reg, settler, notifier, cfg.TickInterval, cfg.EndAtFloor)
	go sched.Run(ctx)

	auctionHandler := handler.NewAuctionHandler(auctionSvc, settler, snapshots, hub)
	router := server.SetupRouter(auctionHandler)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	utils.Info("starting auction server", map[string]any{"addr": cfg.HTTPAddr})
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		utils.Info("shutdown signal received, draining connections", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.Warn("server shutdown did not complete cleanly", map[string]any{"error": err.Error()})
		}
	}

	if producer != nil {
		producer.WaitClosed()
	}
}

// buildRepo selects the durable bid store: Postgres when a DSN is configured,
// in-memory otherwise.
func buildRepo(ctx context.Context, cfg config.Config) (repository.AuctionDB, error) {
	if cfg.PostgresDSN == "" {
		return repository.NewMemoryRepo(), nil
	}
	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	return postgres.NewStore(pool), nil
}
