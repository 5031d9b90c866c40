package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/analytics"
	"github.com/ariefcatur/storefront-orders/internal/config"
	"github.com/ariefcatur/storefront-orders/internal/httpx"
	kafkax "github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/ariefcatur/storefront-orders/internal/notifications"
	"github.com/ariefcatur/storefront-orders/internal/notify"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:   "storefront-api",
		Usage:  "order placement, inventory and order status API",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Usage: "apply pending migrations before serving"},
				},
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations and exit",
				Action: migrate,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("storefront-api stopped")
	}
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := postgres.Connect(c.Context, cfg.PostgresDSN, cfg.PostgresConns)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(c.Context, db, logger); err != nil {
		return err
	}
	v, err := postgres.Version(c.Context, db)
	if err != nil {
		return err
	}
	logger.WithField("version", v).Info("database up to date")
	return nil
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresConns)
	if err != nil {
		return err
	}
	defer db.Close()
	if c.Bool("migrate") {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			return err
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	placedProd := kafkax.NewProducer(cfg.Brokers(), orders.TopicOrderPlaced, 1024, logger)
	placedProd.Start(ctx)
	statusProd := kafkax.NewProducer(cfg.Brokers(), orders.TopicOrderStatusChanged, 1024, logger)
	statusProd.Start(ctx)

	events := notify.NewKafkaPublisher(placedProd, statusProd, cfg.ServiceName)
	statusChannel := redisx.NewStatusChannel(rdb)

	// Domain
	repo := &orders.Repo{DB: db}
	placement := orders.NewPlacement(repo, events, logger)
	updater := orders.NewStatusUpdater(repo, notify.Fanout{statusChannel, events}, logger)
	inventory := orders.NewInventory(repo, logger)

	// HTTP
	router := httpx.NewRouter(logger)
	(&httpx.OrdersHandler{
		Placer:  placement,
		Updater: updater,
		Reader:  repo,
		Idem:    redisx.NewIdempotency(rdb),
		Cache:   redisx.NewStatusCache(rdb),
		Watcher: statusChannel,
		Log:     logger,
		Timeout: cfg.RequestTimeout,

		AllowedOrigins: cfg.AllowedOrigins(),
	}).Register(router)
	(&httpx.ProductsHandler{
		Reader:  repo,
		Stock:   inventory,
		Log:     logger,
		Timeout: cfg.RequestTimeout,
	}).Register(router)
	(&httpx.AdminHandler{
		Summary:       &analytics.Repo{DB: db},
		Notifications: &notifications.Repo{DB: db},
		Log:           logger,
		Timeout:       cfg.RequestTimeout,
	}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		// request contexts end on shutdown, which also closes status streams
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.WithError(err).Error("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.WithError(serr).Warn("http shutdown")
	}
	placedProd.Close()
	statusProd.Close()
	placedProd.WaitClosed()
	statusProd.WaitClosed()
	return err
}
