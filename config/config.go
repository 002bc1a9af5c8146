// Package config loads runtime configuration from a YAML file or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/tax"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Platform selects the price oracle backend: binance, bybit or
	// hyperliquid. Raw events always come from Binance.
	Platform    string
	QuoteAsset  string
	BaseAssets  []string
	TaxPolicy   tax.Policy
	TaxYear     int
	TaxRate     decimal.Decimal
	DataDir     string
	HistoryDir  string
	ListenAddr  string
	TLSDomain   string
	SyncOnStart bool
}

type configTmp struct {
	Platform    string   `yaml:"platform,omitempty"`
	QuoteAsset  string   `yaml:"quote_asset,omitempty"`
	BaseAssets  []string `yaml:"base_assets,omitempty"`
	TaxPolicy   string   `yaml:"tax_policy,omitempty"`
	TaxYear     int      `yaml:"tax_year,omitempty"`
	TaxRateStr  string   `yaml:"tax_rate,omitempty"`
	DataDir     string   `yaml:"data_dir,omitempty"`
	HistoryDir  string   `yaml:"history_dir,omitempty"`
	ListenAddr  string   `yaml:"listen_addr,omitempty"`
	TLSDomain   string   `yaml:"tls_domain,omitempty"`
	SyncOnStart bool     `yaml:"sync_on_start,omitempty"`
}

// Get parses flags and loads either the YAML config or the CLI fallback.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	platform := flag.String("platform", "binance", "price oracle platform: binance, bybit or hyperliquid")
	quote := flag.String("quote", "USDC", "quote currency symbol, example: USDC")
	baseAssets := flag.String("baseassets", strings.Join(domain.DefaultBaseAssets(), ","), "comma-separated stable/fiat symbols valued 1:1")
	taxPolicy := flag.String("taxpolicy", string(tax.PolicyRealizedGains), "tax policy: realized_gains or capital_flow")
	taxYear := flag.Int("taxyear", 0, "tax year, 0 means current year")
	taxRate := flag.String("taxrate", "0.30", "flat tax rate as a fraction")
	dataDir := flag.String("datadir", "./data", "directory for persisted JSON documents")
	historyDir := flag.String("historydir", "./wal/value", "directory for the value history WAL")
	listen := flag.String("listen", ":8080", "HTTP listen address")
	tlsDomain := flag.String("tlsdomain", "", "serve HTTPS via ACME for this domain")
	syncOnStart := flag.Bool("synconstart", false, "run one synchronization at startup")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := Config{
		Platform:    *platform,
		QuoteAsset:  *quote,
		BaseAssets:  splitList(*baseAssets),
		TaxPolicy:   tax.Policy(*taxPolicy),
		TaxYear:     *taxYear,
		DataDir:     *dataDir,
		HistoryDir:  *historyDir,
		ListenAddr:  *listen,
		TLSDomain:   *tlsDomain,
		SyncOnStart: *syncOnStart,
	}

	rate, err := decimal.NewFromString(*taxRate)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --taxrate provided, --taxrate=%s", *taxRate)
	}
	cfg.TaxRate = rate

	return cfg, validate(&cfg)
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Platform:    tmp.Platform,
		QuoteAsset:  tmp.QuoteAsset,
		BaseAssets:  tmp.BaseAssets,
		TaxPolicy:   tax.Policy(tmp.TaxPolicy),
		TaxYear:     tmp.TaxYear,
		DataDir:     tmp.DataDir,
		HistoryDir:  tmp.HistoryDir,
		ListenAddr:  tmp.ListenAddr,
		TLSDomain:   tmp.TLSDomain,
		SyncOnStart: tmp.SyncOnStart,
	}

	if tmp.TaxRateStr == "" {
		cfg.TaxRate = decimal.NewFromFloat(0.30)
	} else {
		rate, err := decimal.NewFromString(tmp.TaxRateStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'tax_rate' param in yaml config (must be a decimal), error: %w", err)
		}
		cfg.TaxRate = rate
	}

	return cfg, validate(&cfg)
}

func validate(cfg *Config) error {
	if cfg.Platform == "" {
		cfg.Platform = "binance"
	}
	switch cfg.Platform {
	case "binance", "bybit", "hyperliquid":
	default:
		return fmt.Errorf("unsupported platform: %s", cfg.Platform)
	}

	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDC"
	}
	if len(cfg.BaseAssets) == 0 {
		cfg.BaseAssets = domain.DefaultBaseAssets()
	}

	if cfg.TaxPolicy == "" {
		cfg.TaxPolicy = tax.PolicyRealizedGains
	}
	switch cfg.TaxPolicy {
	case tax.PolicyRealizedGains, tax.PolicyCapitalFlow:
	default:
		return fmt.Errorf("unsupported tax policy: %s", cfg.TaxPolicy)
	}

	if cfg.TaxYear != 0 {
		if _, err := tax.ValidateYear(cfg.TaxYear, time.Now()); err != nil {
			return fmt.Errorf("incorrect 'tax_year' param: %w", err)
		}
	}

	if cfg.TaxRate.IsNegative() || cfg.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax rate must be within [0, 1], got %s", cfg.TaxRate.String())
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.HistoryDir == "" {
		cfg.HistoryDir = "./wal/value"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
