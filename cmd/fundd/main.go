package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/solfund/fundd/internal/api"
	"github.com/solfund/fundd/internal/config"
	"github.com/solfund/fundd/internal/database"
	"github.com/solfund/fundd/internal/dexquote"
	"github.com/solfund/fundd/internal/export"
	"github.com/solfund/fundd/internal/fund"
	"github.com/solfund/fundd/internal/holding"
	"github.com/solfund/fundd/internal/ledger"
	"github.com/solfund/fundd/internal/market"
	"github.com/solfund/fundd/internal/perf"
	"github.com/solfund/fundd/internal/snapshot"
	"github.com/solfund/fundd/internal/token"
	"github.com/solfund/fundd/internal/trade"
	"github.com/solfund/fundd/internal/valuation"
	"github.com/solfund/fundd/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	app := &cli.App{
		Name:  "fundd",
		Usage: "tokenized investment fund accounting and valuation service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and background workers",
				Action: runServe,
			},
			{
				Name:   "snapshot",
				Usage:  "record one valuation snapshot for every active fund and exit",
				Action: runSnapshot,
			},
			{
				Name:   "export",
				Usage:  "build the leaderboard report, write it to the configured destination and exit",
				Action: runExport,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// components is the wired object graph shared by all commands.
type components struct {
	pool      *pgxpool.Pool
	cfg       config.Config
	registry  *token.Registry
	valuer    *valuation.Service
	fundRepo  *fund.PgRepository
	funds     *fund.Service
	snapshots *snapshot.Service
	holdings  *holding.Tracker
	ledgers   *ledger.Service
	trades    *trade.Service
	engine    *perf.Engine
	reports   *export.Service
}

func build(ctx context.Context) (*components, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	marketClient := market.NewClient(cfg.MarketDataURL, cfg.MarketDataAPIKey, cfg.MarketDataTimeout, cfg.MarketDataRetryMax)
	quoteClient := dexquote.NewClient(cfg.JupiterURL, cfg.JupiterTimeout, cfg.JupiterRetryMax)

	tokenRepo := token.NewPgRepository(pool)
	registry := token.NewRegistry(marketClient, tokenRepo, cfg.PriceFreshness,
		cfg.ReferenceTokenAddress, cfg.ReferenceTokenSymbol)
	if err := registry.Initialize(ctx, nil); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing token registry: %w", err)
	}

	valuer := valuation.NewService(registry)

	fundRepo := fund.NewPgRepository(pool)
	funds := fund.NewService(fundRepo, registry, fund.NewLocker())

	snapshots := snapshot.NewService(snapshot.NewPgRepository(pool), valuer)

	holdings := holding.NewTracker(holding.NewPgRepository(pool))
	ledgerRepo := ledger.NewPgRepository(pool)
	ledgers := ledger.NewService(funds, holdings, registry, valuer, ledgerRepo, snapshots)

	tradeRepo := trade.NewPgRepository(pool)
	trades := trade.NewService(funds, quoteClient, registry, valuer, tradeRepo, snapshots)

	engine := perf.NewEngine(fundRepo, ledgerRepo, tradeRepo, registry, valuer)

	writer, err := reportWriter(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	reports := export.NewService(fundRepo, valuer, snapshots, writer)

	return &components{
		pool:      pool,
		cfg:       cfg,
		registry:  registry,
		valuer:    valuer,
		fundRepo:  fundRepo,
		funds:     funds,
		snapshots: snapshots,
		holdings:  holdings,
		ledgers:   ledgers,
		trades:    trades,
		engine:    engine,
		reports:   reports,
	}, nil
}

// reportWriter picks the export destination: Google Sheets when configured,
// otherwise a local workbook.
func reportWriter(ctx context.Context, cfg config.Config) (export.ReportWriter, error) {
	if cfg.SheetsSpreadsheetID != "" && cfg.SheetsCredentialsJSON != "" {
		w, err := export.NewSheetsWriter(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsCredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("creating sheets writer: %w", err)
		}
		return w, nil
	}
	return export.NewXLSXWriter(cfg.ReportXLSXPath), nil
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx)
	if err != nil {
		return err
	}
	defer app.pool.Close()

	priceWorker := worker.NewPriceWorker(app.registry, app.cfg.PriceWorkerInterval)
	go priceWorker.Run(ctx)

	sweepWorker := worker.NewSweepWorker(app.fundRepo, app.cfg.SweepInterval)
	go sweepWorker.Run(ctx)

	snapshotWorker := worker.NewSnapshotWorker(app.fundRepo, app.snapshots, app.cfg.SnapshotInterval, app.reports)
	go snapshotWorker.Run(ctx)

	srv := api.NewServer(app.cfg.HTTPPort, app.funds, app.ledgers, app.trades,
		app.valuer, app.engine, app.reports, app.holdings)

	go func() {
		slog.Info("HTTP server listening", "port", app.cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func runSnapshot(c *cli.Context) error {
	app, err := build(c.Context)
	if err != nil {
		return err
	}
	defer app.pool.Close()

	funds, err := app.fundRepo.ListActive(c.Context)
	if err != nil {
		return fmt.Errorf("listing funds: %w", err)
	}
	for _, f := range funds {
		if _, err := app.snapshots.Record(c.Context, &f); err != nil {
			slog.Error("recording snapshot", "fund", f.ID, "error", err)
		}
	}
	slog.Info("snapshot pass complete", "funds", len(funds))
	return nil
}

func runExport(c *cli.Context) error {
	app, err := build(c.Context)
	if err != nil {
		return err
	}
	defer app.pool.Close()

	if err := app.reports.Export(c.Context); err != nil {
		return fmt.Errorf("exporting report: %w", err)
	}
	slog.Info("export complete")
	return nil
}
