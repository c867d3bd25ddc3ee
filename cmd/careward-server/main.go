package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careward/careward/internal/config"
	"github.com/careward/careward/internal/domain/membership"
	"github.com/careward/careward/internal/effect"
	"github.com/careward/careward/internal/platform/auth"
	"github.com/careward/careward/internal/platform/db"
	"github.com/careward/careward/internal/platform/eventbus"
	"github.com/careward/careward/internal/platform/middleware"
	"github.com/careward/careward/internal/platform/vendorbilling"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "careward-server",
		Short: "Careward practice back-office server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(renewCmd())
	rootCmd.AddCommand(repriceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the back-office API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, dir).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, dir).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func renewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew",
		Short: "Roll due subscriptions into their next period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(func(ctx context.Context, svc *membership.Service, cfg *config.Config) (membership.BatchResult, error) {
				return svc.RenewDue(ctx, time.Now().UTC(), cfg.RenewalBatchLimit)
			})
		},
	}
}

func repriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprice",
		Short: "Redirect under-priced renewals to the configured alternate tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(func(ctx context.Context, svc *membership.Service, cfg *config.Config) (membership.BatchResult, error) {
				return svc.RepriceAll(ctx, time.Now().UTC(), cfg.RenewalBatchLimit)
			})
		},
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func buildService(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *membership.Service {
	subs := membership.NewSubscriptionRepoPG(pool)
	prices := membership.NewPaymentPriceRepoPG(pool)
	promos := membership.NewPromoCodeRepoPG(pool)
	employers := membership.NewEmployerProductRepoPG(pool)
	issues := membership.NewPaymentIssueRepoPG(pool)
	timeline := membership.NewTimelineRepoPG(pool)
	patients := membership.NewPatientReaderPG(pool)

	bus := eventbus.New(logger)
	bus.Subscribe("*", func(ctx context.Context, ev effect.Event) error {
		logger.Info().Str("event", ev.EventName()).Msg("event published")
		return nil
	})

	store := membership.NewStore(subs, issues, timeline)
	mat := effect.NewMaterializer(db.NewPoolRunner(pool), store, bus, logger)

	vendor := vendorbilling.NewHTTPStatusClient(os.Getenv("VENDOR_BILLING_URL"), nil)

	return membership.NewService(
		subs, prices, promos, employers, issues, timeline, patients,
		mat, vendor,
		membership.RepriceConfig{
			MinPrice:           cfg.MinPrice(),
			AlternatePriceCode: cfg.RenewalAlternatePrice,
			NoticeDays:         cfg.RenewalNoticeDays,
		},
		logger,
	)
}

func runBatch(fn func(ctx context.Context, svc *membership.Service, cfg *config.Config) (membership.BatchResult, error)) error {
	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := buildService(cfg, pool, logger)
	res, err := fn(ctx, svc, cfg)
	if err != nil {
		return err
	}
	logger.Info().
		Int("processed", res.Processed).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Msg("batch pass finished")
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d subscriptions failed", res.Failed, res.Processed)
	}
	return nil
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	svc := buildService(cfg, pool, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(auth.Middleware(auth.Config{
		Issuer:     cfg.AuthIssuer,
		SigningKey: []byte(cfg.AuthSecret),
		DevMode:    cfg.IsDev(),
	}))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	membership.NewHandler(svc).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": "0.1.0"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
