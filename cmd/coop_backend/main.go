package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/commonward/coop_ledger_app/internal/core/services"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
	"github.com/commonward/coop_ledger_app/internal/handlers"
	"github.com/commonward/coop_ledger_app/internal/middleware"
	"github.com/commonward/coop_ledger_app/internal/platform/config"
	"github.com/commonward/coop_ledger_app/internal/projector"
	"github.com/commonward/coop_ledger_app/internal/reactors"
	"github.com/commonward/coop_ledger_app/internal/repositories/database/pgsql"
	"github.com/commonward/coop_ledger_app/pkg/database"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:   "coop_backend",
		Short: "Cooperative patronage ledger service",
	}
	root.AddCommand(serveCmd(logger), replayCmd(logger), verifyCmd(logger))

	if err := root.Execute(); err != nil {
		logger.Error("Command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// app bundles what every command needs after bootstrap.
type app struct {
	cfg    *config.Config
	dbPool *pgxpool.Pool
}

func bootstrap(ctx context.Context, logger *slog.Logger, runMigrations bool) (*app, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("init database pool: %w", err)
	}
	cleanup := func() { dbPool.Close() }
	logger.Info("Database connection pool established.")

	if runMigrations {
		if err := applyMigrations(logger, cfg.DatabaseURL); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	return &app{cfg: cfg, dbPool: dbPool}, cleanup, nil
}

// applyMigrations runs all pending up migrations through a temporary
// database/sql connection; the pgx pool stays dedicated to the app.
func applyMigrations(logger *slog.Logger, databaseURL string) error {
	logger.Info("Running database migrations...")

	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

func serveCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations, catch the projector up, and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := middleware.WithLogger(cmd.Context(), logger)

			boot, cleanup, err := bootstrap(ctx, logger, true)
			if err != nil {
				return err
			}
			defer cleanup()

			repos := pgsql.NewRepositoryProvider(boot.dbPool)
			bus := eventbus.New()

			// The projector subscribes first: reactors read projections, so
			// they must see an event only after it has been applied.
			proj := projector.New(repos)
			bus.Subscribe(proj)

			serviceContainer := services.NewServiceContainer(boot.cfg, repos, bus)

			formula := services.NewFormulaEngine(boot.cfg.FormulaConfig())
			dispatcher := reactors.NewDispatcher(
				repos.IdempotencyRepo,
				reactors.RetryPolicy{
					MaxAttempts: boot.cfg.ReactorMaxAttempts,
					BaseBackoff: boot.cfg.ReactorBaseBackoff,
					MaxBackoff:  boot.cfg.ReactorMaxBackoff,
					Multiplier:  boot.cfg.ReactorBackoffMultiplier,
				},
				reactors.NewContributionApprovedReactor(repos, bus, formula),
				reactors.NewAllocationApprovedReactor(repos, bus, formula),
				reactors.NewDistributionCompletedReactor(repos, bus, serviceContainer.Ledger, formula, boot.cfg.TreasuryAccountID),
			)
			bus.Subscribe(dispatcher)

			// Replay anything the projections missed before taking traffic.
			logger.Info("Projector catching up...")
			if err := proj.CatchUp(ctx); err != nil {
				return fmt.Errorf("projector catch-up: %w", err)
			}
			logger.Info("Projector caught up.")

			// Finish any reactor work a previous process claimed but never
			// completed, before the bus takes new traffic.
			if err := dispatcher.RedriveStuck(ctx, repos.EventStoreRepo); err != nil {
				return fmt.Errorf("reactor redrive: %w", err)
			}

			if boot.cfg.IsProduction {
				gin.SetMode(gin.ReleaseMode)
			}
			r := gin.New()
			r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery(), cors.Default())
			if err := r.SetTrustedProxies(nil); err != nil {
				return fmt.Errorf("set trusted proxies: %w", err)
			}

			handlers.RegisterRoutes(r, boot.cfg, serviceContainer)

			srv := &http.Server{
				Addr:    ":" + boot.cfg.Port,
				Handler: r,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Server starting", slog.String("port", boot.cfg.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case sig := <-stop:
				logger.Info("Shutting down", slog.String("signal", sig.String()))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown: %w", err)
			}
			logger.Info("Server stopped.")
			return nil
		},
	}
}

func replayCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild all projections from the event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := middleware.WithLogger(cmd.Context(), logger)

			boot, cleanup, err := bootstrap(ctx, logger, true)
			if err != nil {
				return err
			}
			defer cleanup()

			repos := pgsql.NewRepositoryProvider(boot.dbPool)
			proj := projector.New(repos)

			logger.Info("Rebuilding projections from the event log...")
			start := time.Now()
			if err := proj.Rebuild(ctx); err != nil {
				return fmt.Errorf("rebuild projections: %w", err)
			}
			logger.Info("Projections rebuilt", slog.Duration("elapsed", time.Since(start)))
			return nil
		},
	}
}

func verifyCmd(logger *slog.Logger) *cobra.Command {
	var periodID string
	var memberID string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the invariant validators and print their reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := middleware.WithLogger(cmd.Context(), logger)

			boot, cleanup, err := bootstrap(ctx, logger, false)
			if err != nil {
				return err
			}
			defer cleanup()

			repos := pgsql.NewRepositoryProvider(boot.dbPool)
			serviceContainer := services.NewServiceContainer(boot.cfg, repos, eventbus.New())

			failed := false

			ledgerReport, err := serviceContainer.Validator.CheckLedgerIntegrity(ctx)
			if err != nil {
				return fmt.Errorf("ledger integrity check: %w", err)
			}
			failed = printReport(ledgerReport.Validator, ledgerReport) || failed

			capitalReport, err := serviceContainer.Validator.CheckCapitalAccountReconciliation(ctx, memberID)
			if err != nil {
				return fmt.Errorf("capital reconciliation check: %w", err)
			}
			failed = printReport(capitalReport.Validator, capitalReport) || failed

			if periodID != "" {
				allocationReport, err := serviceContainer.Validator.CheckAllocationCompliance(ctx, periodID)
				if err != nil {
					return fmt.Errorf("allocation compliance check: %w", err)
				}
				failed = printReport(allocationReport.Validator, allocationReport) || failed
			}

			if failed {
				return errors.New("validation found error-severity violations")
			}
			fmt.Println("All checks passed.")
			return nil
		},
	}

	cmd.Flags().StringVar(&periodID, "period", "", "also check allocation compliance for this period")
	cmd.Flags().StringVar(&memberID, "member", "", "limit capital reconciliation to one member (empty checks all)")
	return cmd
}

// printReport prints one validator report as indented JSON and reports
// whether it contains error-severity violations.
func printReport(name string, report any) bool {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Printf("%s: failed to render report: %v\n", name, err)
		return true
	}
	fmt.Println(string(out))

	type validity interface{ Valid() bool }
	if v, ok := report.(validity); ok {
		return !v.Valid()
	}
	return false
}
