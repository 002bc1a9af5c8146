// Package setup provides the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

type fileConfig struct {
	Platform    string   `yaml:"platform"`
	QuoteAsset  string   `yaml:"quote_asset"`
	BaseAssets  []string `yaml:"base_assets"`
	TaxPolicy   string   `yaml:"tax_policy"`
	TaxYear     int      `yaml:"tax_year"`
	TaxRate     string   `yaml:"tax_rate"`
	DataDir     string   `yaml:"data_dir"`
	ListenAddr  string   `yaml:"listen_addr"`
	SyncOnStart bool     `yaml:"sync_on_start"`
}

// RunTUI launches the terminal configuration wizard and writes config.yaml.
func RunTUI() error {
	var (
		platform   string
		quoteAsset string
		baseAssets string
		taxPolicy  string
		taxYearStr string
		taxRateStr string
		dataDir    string
		listenAddr string
		syncStart  bool
		confirm    bool
	)

	// defaults
	quoteAsset = "USDC"
	baseAssets = "USDC,BUSD,USDT,EUR,USD"
	taxYearStr = strconv.Itoa(time.Now().Year())
	taxRateStr = "0.30"
	dataDir = "./data"
	listenAddr = ":8080"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's get your portfolio tracked in style.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PRICE ORACLE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose the price oracle platform").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
				).
				Value(&platform),
			huh.NewInput().
				Title("Quote currency").
				Description("The stablecoin everything is valued in").
				Value(&quoteAsset),
			huh.NewInput().
				Title("Base assets").
				Description("Comma-separated stable/fiat symbols valued 1:1").
				Value(&baseAssets),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("STEP 2: TAX ESTIMATE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose the tax estimation policy").
				Options(
					huh.NewOption("Realized gains per year", "realized_gains"),
					huh.NewOption("Withdrawals minus deposits per year", "capital_flow"),
				).
				Value(&taxPolicy),
			huh.NewInput().
				Title("Tax year").
				Value(&taxYearStr),
			huh.NewInput().
				Title("Flat tax rate").
				Description("Fraction, e.g. 0.30 for 30%").
				Value(&taxRateStr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("STEP 3: SERVER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Data directory").
				Value(&dataDir),
			huh.NewInput().
				Title("HTTP listen address").
				Value(&listenAddr),
			huh.NewConfirm().
				Title("Synchronize once at startup?").
				Value(&syncStart),
		),
	).Run()
	if err != nil {
		return err
	}

	taxYear, err := strconv.Atoi(strings.TrimSpace(taxYearStr))
	if err != nil {
		return fmt.Errorf("invalid tax year: %s", taxYearStr)
	}
	if _, err := decimal.NewFromString(taxRateStr); err != nil {
		return fmt.Errorf("invalid tax rate: %s", taxRateStr)
	}

	cfg := fileConfig{
		Platform:    platform,
		QuoteAsset:  strings.ToUpper(strings.TrimSpace(quoteAsset)),
		BaseAssets:  splitAssets(baseAssets),
		TaxPolicy:   taxPolicy,
		TaxYear:     taxYear,
		TaxRate:     taxRateStr,
		DataDir:     dataDir,
		ListenAddr:  listenAddr,
		SyncOnStart: syncStart,
	}

	preview, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("REVIEW"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render(string(preview)))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write config.yaml?").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		fmt.Println("Aborted, nothing written.")
		return nil
	}

	if err := os.WriteFile("config.yaml", preview, 0o644); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("config.yaml written. Start with: folio --config config.yaml"))
	return nil
}

func splitAssets(raw string) []string {
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
