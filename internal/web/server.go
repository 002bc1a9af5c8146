// Package web exposes the portfolio over a JSON HTTP API plus an SSE stream
// of value-history points.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/tax"
	"github.com/vadiminshakov/folio/pkg/indicators"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const (
	historyPollInterval = 2 * time.Second
	trendPeriod         = 7
)

type portfolioService interface {
	Sync(ctx context.Context) (*domain.PortfolioSnapshot, error)
	Snapshot() *domain.PortfolioSnapshot
	RawEvents() *domain.RawEvents
	TaxFor(ctx context.Context, year int) (domain.TaxReport, error)
}

type valueHistoryReader interface {
	PointsAfter(index uint64) ([]domain.ValuePointRecord, error)
}

// Server exposes the HTTP API. With TLSDomain set it serves HTTPS through an
// ACME autocert manager, plain HTTP otherwise.
type Server struct {
	Addr      string
	TLSDomain string
	Portfolio portfolioService
	History   valueHistoryReader
	Logger    *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr, tlsDomain string, svc portfolioService, history valueHistoryReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, TLSDomain: tlsDomain, Portfolio: svc, History: history, Logger: logger}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sync", s.handleSync)
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/taxes", s.handleTaxes)
	mux.HandleFunc("/value/stream", s.handleValueStream)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if s.TLSDomain != "" {
		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(s.TLSDomain),
			Cache:      autocert.DirCache("certs"),
		}
		server.TLSConfig = &tls.Config{GetCertificate: manager.GetCertificate}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	var err error
	if s.TLSDomain != "" {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}

	snap, err := s.Portfolio.Sync(r.Context())
	if err != nil {
		s.Logger.Error("synchronization failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "synchronization failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "synchronized",
		"syncId":        snap.SyncID,
		"openPositions": len(snap.OpenPositions),
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}
	writeJSON(w, http.StatusOK, s.Portfolio.Snapshot())
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}
	writeJSON(w, http.StatusOK, s.Portfolio.RawEvents())
}

// handleStats serves chart data: distribution, monthly realized profit and
// the smoothed value trend.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}
	snap := s.Portfolio.Snapshot()

	stats := map[string]any{
		"currentValue":   snap.CurrentValue,
		"distribution":   snap.Distribution,
		"monthlyProfits": snap.MonthlyProfits,
	}

	if s.History != nil {
		points, err := s.History.PointsAfter(0)
		if err != nil {
			s.Logger.Warn("failed to load value history", zap.Error(err))
		} else {
			stats["valueHistory"] = points
			stats["valueTrend"] = valueTrend(points)
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTaxes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}
	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid year: %q", raw))
			return
		}
		year = parsed
	}
	if year == 0 {
		year = time.Now().Year()
	}

	report, err := s.Portfolio.TaxFor(r.Context(), year)
	if err != nil {
		if errors.Is(err, tax.ErrInvalidYear) {
			// the report already fell back to the current year; tell the caller why
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": err.Error(),
				"taxes": report,
			})
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleValueStream(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, "value history not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// comment heartbeat every 30s so proxies keep the connection open
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(historyPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendPoints := func() error {
		records, err := s.History.PointsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Point)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: value\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendPoints(); err != nil {
		s.Logger.Error("value stream initial load failed", zap.Error(err))
		http.Error(w, "failed to load value history", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendPoints(); err != nil {
				s.Logger.Warn("value stream poll failed", zap.Error(err))
			}
		}
	}
}

// valueTrend smooths the value series with a short SMA. An empty slice is
// returned while there are fewer syncs than the period needs.
func valueTrend(points []domain.ValuePointRecord) []decimal.Decimal {
	values := make([]decimal.Decimal, len(points))
	for i, p := range points {
		values[i] = p.Point.Value
	}

	trend, err := indicators.SMA(values, trendPeriod)
	if err != nil {
		return []decimal.Decimal{}
	}
	return trend
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
