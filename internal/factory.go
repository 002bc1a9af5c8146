package internal

import (
	"os"

	binance "github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/clients"
	"github.com/vadiminshakov/folio/internal/services/pricer"
)

// NewOracle dispatches to the platform-specific price oracle. The Binance
// spot client is always available because raw events come from Binance, so
// the binance oracle reuses it instead of opening a second connection.
func NewOracle(cfg config.Config, binanceClient *binance.Client) (pricer.Pricer, error) {
	switch cfg.Platform {
	case "binance":
		return pricer.NewBinancePricer(binanceClient, cfg.QuoteAsset), nil
	case "bybit":
		return pricer.NewBybitPricer(clients.NewBybitClient(), cfg.QuoteAsset), nil
	case "hyperliquid":
		privateKey := os.Getenv("HYPERLIQUID_PRIVATE_KEY")
		if privateKey == "" {
			return nil, errors.New("HYPERLIQUID_PRIVATE_KEY environment variable must be set for the hyperliquid oracle")
		}
		hl, err := clients.NewHyperliquidClient(privateKey, os.Getenv("HYPERLIQUID_API_URL"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create hyperliquid client")
		}
		return pricer.NewHyperliquidPricer(hl.Exchange().Info()), nil
	default:
		return nil, errors.Errorf("unsupported platform: %s", cfg.Platform)
	}
}
