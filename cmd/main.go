package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	auctionapp "github.com/cristianortiz/marketplace/internal/auction/application"
	auctiondomain "github.com/cristianortiz/marketplace/internal/auction/domain"
	auctionhttp "github.com/cristianortiz/marketplace/internal/auction/infra/http"
	auctionws "github.com/cristianortiz/marketplace/internal/auction/infra/websocket"
	orderapp "github.com/cristianortiz/marketplace/internal/order/application"
	orderdomain "github.com/cristianortiz/marketplace/internal/order/domain"
	orderhttp "github.com/cristianortiz/marketplace/internal/order/infra/http"
	"github.com/cristianortiz/marketplace/internal/order/infra/ship24"
	"github.com/cristianortiz/marketplace/internal/order/infra/stripe"
	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/config"
	"github.com/cristianortiz/marketplace/internal/shared/db"
	"github.com/cristianortiz/marketplace/internal/shared/db/migrations"
	"github.com/cristianortiz/marketplace/internal/shared/deadline"
	pgdeadline "github.com/cristianortiz/marketplace/internal/shared/deadline/postgres"
	temporaldeadline "github.com/cristianortiz/marketplace/internal/shared/deadline/temporal"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	pgevents "github.com/cristianortiz/marketplace/internal/shared/eventsourcing/postgres"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing/redisbus"
	"github.com/cristianortiz/marketplace/internal/shared/httpserver"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	pgsaga "github.com/cristianortiz/marketplace/internal/shared/saga/postgres"
	"github.com/cristianortiz/marketplace/internal/shared/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, cfgErr := config.Load()

	log := logger.GetLogger()
	defer log.Sync()

	if cfgErr != nil {
		log.Fatal("Invalid configuration", zap.Error(cfgErr))
	}
	log.Info("Starting marketplace server...", zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(cfg.DB); err != nil {
		log.Fatal("Database migration failed", zap.Error(err))
	}
	log.Info("Database migrations completed successfully.")

	pool, err := db.GetPostgresDBPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	defer pool.Close()

	clk := clock.NewSystem()

	registry := eventsourcing.NewRegistry()
	auctiondomain.RegisterEvents(registry)
	orderdomain.RegisterEvents(registry)
	eventStore := pgevents.NewEventStore(pool, registry)

	bus := eventsourcing.NewBus()
	publisher := eventsourcing.FanOut{bus}
	var redisPub *redisbus.Publisher
	if cfg.RedisAddr != "" {
		redisPub, err = redisbus.New(ctx, cfg.RedisAddr, cfg.RedisChannel, registry)
		if err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		defer redisPub.Close()
		publisher = append(publisher, redisPub)
	}

	auctionRepo := auctionapp.NewAuctionRepository(eventStore, publisher)
	orderRepo := orderapp.NewOrderRepository(eventStore, publisher)

	dispatcher := deadline.NewDispatcher()
	auctionapp.RegisterDeadlines(dispatcher, auctionRepo, clk)
	orderapp.RegisterDeadlines(dispatcher, orderRepo, clk)

	scheduler, shutdownScheduler := startScheduler(ctx, cfg, pool, dispatcher, clk)
	defer shutdownScheduler()

	// auction context
	auctionService := auctionapp.NewAuctionService(auctionRepo, scheduler, clk)

	hub := websocket.NewHub()
	go hub.Run(ctx)
	projector := auctionws.NewProjector(hub)
	if redisPub != nil {
		// every instance projects from the shared channel so remote bids reach local sockets
		if err := redisPub.Forward(ctx, projector.Handle); err != nil {
			log.Fatal("Redis subscribe failed", zap.Error(err))
		}
	} else {
		bus.Subscribe("auction-projector", projector.Handle, projector.EventTypes()...)
	}

	wsHandler := auctionws.NewAuctionWSHandler(auctionService, hub)
	go wsHandler.ListenForMessages(ctx)

	// order context
	payments := stripe.NewGateway(stripe.NewClient(cfg.Stripe.APIKey, nil), cfg.Stripe.Currency)
	tracker := ship24.NewClient(cfg.Ship24.BaseURL, cfg.Ship24.APIKey)
	orderService := orderapp.NewOrderService(orderRepo, scheduler, payments, orderapp.Policy{
		RefundPeriod:   cfg.Policy.RefundPeriod(),
		CommissionRate: cfg.Policy.CommissionRate,
	}, clk)

	refunds := orderapp.NewRefundReactor(orderService, payments)
	bus.Subscribe("refund-reactor", refunds.Handle, refunds.EventTypes()...)
	trackers := orderapp.NewTrackerReactor(orderService, tracker)
	bus.Subscribe("tracker-reactor", trackers.Handle, trackers.EventTypes()...)

	settlement := orderapp.NewSettlementHandler(payments, publisher, cfg.Stripe.PlatformAccountID, clk)
	finalize := orderapp.NewFinalizeOrderManager(pgsaga.NewStore(pool), settlement, orderService)
	bus.Subscribe("finalize-order-saga", finalize.Handle, finalize.EventTypes()...)

	server := httpserver.NewServer(auctionhttp.StatusFor, orderhttp.StatusFor)
	auctionhttp.NewHandler(auctionService).RegisterRoutes(server.App())
	wsHandler.RegisterRoutes(ctx, server.App())
	orderhttp.NewHandler(orderService, cfg.Ship24.WebhookSecret).RegisterRoutes(server.App())

	if err := server.Start(ctx, cfg.HTTPAddr); err != nil {
		log.Fatal("HTTP server failed", zap.Error(err))
	}
	log.Info("Marketplace server stopped")
}

// startScheduler builds the configured deadline backend and starts whatever
// loop or worker it needs to fire deadlines.
func startScheduler(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, dispatcher *deadline.Dispatcher, clk clock.Clock) (deadline.Scheduler, func()) {
	log := logger.GetLogger()

	switch cfg.Deadlines.Backend {
	case config.DeadlineBackendTemporal:
		c, err := temporaldeadline.Dial(ctx, cfg.Temporal.Address, cfg.Temporal.Namespace)
		if err != nil {
			log.Fatal("Temporal connection failed", zap.Error(err))
		}
		w := temporaldeadline.NewWorker(c, cfg.Temporal.TaskQueue, dispatcher)
		if err := w.Start(); err != nil {
			log.Fatal("Temporal worker failed to start", zap.Error(err))
		}
		log.Info("Deadlines scheduled on temporal", zap.String("taskQueue", cfg.Temporal.TaskQueue))
		return temporaldeadline.NewScheduler(c, cfg.Temporal.TaskQueue), func() {
			w.Stop()
			c.Close()
		}

	case config.DeadlineBackendMemory:
		s := deadline.NewMemoryScheduler(dispatcher, clk)
		go s.Run(ctx, cfg.Deadlines.PollInterval)
		log.Warn("Deadlines kept in memory, pending deadlines are lost on restart")
		return s, func() {}

	default:
		s := pgdeadline.NewScheduler(pool, dispatcher, clk, cfg.Deadlines.BatchSize)
		go s.Run(ctx, cfg.Deadlines.PollInterval)
		log.Info("Deadlines scheduled on postgres", zap.Duration("pollInterval", cfg.Deadlines.PollInterval))
		return s, func() {}
	}
}
