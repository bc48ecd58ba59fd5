package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"stocks-simulator/config"
	"stocks-simulator/database"
	"stocks-simulator/handlers"
	"stocks-simulator/ledger"
	"stocks-simulator/market"
	"stocks-simulator/middleware"
	"stocks-simulator/portfolio"
	"stocks-simulator/trading"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "stocks-simulator",
		Short:        "Paper trading server with simulated cash and live quotes",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(migrateCmd(&configPath))
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := config.OpenDB(cfg.DB, config.SetupLogger(cfg.LogLevel, cfg.LogJSON))
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info().Msg("database migrated")
			return nil
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	gormLevel := config.SetupLogger(cfg.LogLevel, cfg.LogJSON)
	if err := cfg.Validate(); err != nil {
		return err
	}

	rdb, err := config.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Warn().Msg("REDIS_ADDR not set, running without quote cache or refresh token revocation")
	}

	var (
		store    ledger.Store
		accounts ledger.Accounts
		db       *gorm.DB
	)
	switch cfg.Store {
	case "postgres":
		db, err = config.OpenDB(cfg.DB, gormLevel)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		gs := ledger.NewGormStore(db, cfg.DB.QueryTimeout)
		store, accounts = gs, gs
	default:
		log.Warn().Msg("using in-memory store, all data is lost on exit")
		ms := ledger.NewMemoryStore()
		store, accounts = ms, ms
	}

	source, history := newMarket(cfg.Market, rdb, db)
	svc := trading.NewService(store, portfolio.NewEngine(source), trading.NewMetrics(prometheus.DefaultRegisterer))

	h := &handlers.Handler{
		Trading:         svc,
		Accounts:        accounts,
		History:         history,
		Redis:           rdb,
		JWTSecret:       cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		StartingCash:    cfg.StartingCash,
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(), middleware.NoCache(), gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Routes(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Str("market", cfg.Market.Provider).Msg("server started")

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newMarket builds the quote source chain. rdb and db may be nil; price
// history is only available from a live provider.
func newMarket(cfg config.MarketConfig, rdb *redis.Client, db *gorm.DB) (market.Source, *market.History) {
	var (
		source  market.Source
		history *market.History
	)
	switch cfg.Provider {
	case "alphavantage":
		av := market.NewAlphaVantage(market.AlphaVantageConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Timeout:           cfg.Timeout,
			RequestsPerMinute: cfg.RequestsPerMinute,
		})
		source = av
		history = market.NewHistory(av, rdb, db)
	default:
		static := make(market.Static, len(cfg.Static))
		for symbol, q := range cfg.Static {
			static[strings.ToUpper(symbol)] = q
		}
		source = static
	}

	if db != nil {
		source = market.NewRecorder(source, db)
	}
	if rdb != nil {
		source = market.NewCached(source, rdb, cfg.QuoteTTL)
	}
	return source, history
}
