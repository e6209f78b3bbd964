package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/yuankeMiao/Marmotshop-backend/internal/catalog"
	"github.com/yuankeMiao/Marmotshop-backend/internal/config"
	"github.com/yuankeMiao/Marmotshop-backend/internal/db"
	"github.com/yuankeMiao/Marmotshop-backend/internal/inventory"
	"github.com/yuankeMiao/Marmotshop-backend/internal/metrics"
	"github.com/yuankeMiao/Marmotshop-backend/internal/order"
	"github.com/yuankeMiao/Marmotshop-backend/internal/review"
	"github.com/yuankeMiao/Marmotshop-backend/internal/transport"
	"github.com/yuankeMiao/Marmotshop-backend/internal/user"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "marmotshop").Logger()

	app := &cli.App{
		Name:  "marmotshop",
		Usage: "order placement and review backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "optional dotenv file loaded before the environment",
				EnvVars: []string{"ENV_FILE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Usage: "apply pending migrations before serving"},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations and exit",
				Action: migrateOnly,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("marmotshop exited with error")
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.IsDevelopment() && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.With().Str("env", cfg.App.Env).Logger()
	return cfg, nil
}

func migrateOnly(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return db.Migrate(cfg.Postgres)
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log.Info().Msg("Marmotshop starting...")

	if c.Bool("migrate") {
		if err := db.Migrate(cfg.Postgres); err != nil {
			return err
		}
	}

	connectCtx, cancelConnect := context.WithTimeout(c.Context, 10*time.Second)
	pg, err := db.New(connectCtx, cfg.Postgres)
	cancelConnect()
	if err != nil {
		return err
	}
	defer pg.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	txMetrics := metrics.NewTransactions(reg)

	txManager := db.NewTxManager(pg.Pool, cfg.Tx)
	users := user.NewRepository(pg.Pool)
	products := catalog.NewRepository(pg.Pool)
	orderRepo := order.NewRepository(pg.Pool, pg.SQL)

	orderSvc := order.NewService(txManager, orderRepo, products, inventory.NewLedger(products), users, order.WithMetrics(txMetrics))
	reviewSvc := review.NewService(txManager, review.NewRepository(pg.Pool, pg.SQL), products, orderRepo, users, review.WithMetrics(txMetrics))

	router := transport.NewRouter(transport.Deps{
		Orders:   orderSvc,
		Reviews:  reviewSvc,
		Users:    users,
		DB:       pg.Pool,
		Metrics:  metrics.NewServerMetrics(reg),
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info().Stringer("signal", sig).Msg("Shutting down...")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
