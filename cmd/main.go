// Command folio tracks a crypto exchange portfolio: it pulls deposits,
// withdrawals, trades and conversions from Binance, replays them through an
// average-cost ledger and serves the resulting snapshot over HTTP.
//
// Usage:
//
//	folio setup            (interactive configuration wizard)
//	folio --config config.yaml
//	folio                  (uses CLI arguments)
//
// Required environment variables:
//
//	BINANCE_API_KEY, BINANCE_API_SECRET
//	For the hyperliquid oracle: HYPERLIQUID_PRIVATE_KEY
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal"
	"github.com/vadiminshakov/folio/internal/clients"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/portfolio"
	"github.com/vadiminshakov/folio/internal/services/source"
	"github.com/vadiminshakov/folio/internal/services/tax"
	"github.com/vadiminshakov/folio/internal/setup"
	"github.com/vadiminshakov/folio/internal/storage/snapshots"
	"github.com/vadiminshakov/folio/internal/storage/valuehistory"
	"github.com/vadiminshakov/folio/internal/web"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	apiKey := os.Getenv("BINANCE_API_KEY")
	apiSecret := os.Getenv("BINANCE_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		log.Fatal("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
	}
	binanceClient := clients.NewBinanceClient(apiKey, apiSecret)

	oracle, err := internal.NewOracle(cfg, binanceClient)
	if err != nil {
		log.Fatal(err)
	}

	store, err := snapshots.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatal(err)
	}

	history, err := valuehistory.NewWALStore(cfg.HistoryDir)
	if err != nil {
		log.Fatal(err)
	}
	defer history.Close()

	base := domain.NewBaseAssets(cfg.BaseAssets)

	estimator, err := tax.New(cfg.TaxPolicy, cfg.TaxRate, base, oracle, logger)
	if err != nil {
		log.Fatal(err)
	}

	svc := portfolio.NewService(portfolio.Deps{
		Source:  source.NewBinanceSource(binanceClient, logger),
		Oracle:  oracle,
		Store:   store,
		History: history,
	}, base, cfg.QuoteAsset, estimator, cfg.TaxYear, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SyncOnStart {
		if _, err := svc.Sync(ctx); err != nil {
			logger.Error("initial synchronization failed", zap.Error(err))
		}
	}

	srv := web.NewServer(cfg.ListenAddr, cfg.TLSDomain, svc, history, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
