// Package api provides the HTTP and WebSocket API of the search server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tripgrid/faresearch/pkg/logging"
	"github.com/tripgrid/faresearch/pkg/metrics"
	"github.com/tripgrid/faresearch/pkg/server/aggregate"
	"github.com/tripgrid/faresearch/pkg/server/inventory"
)

// Searcher runs one provider fan-out. *inventory.Fanout satisfies this.
type Searcher interface {
	Search(ctx context.Context, query inventory.Query) []inventory.Batch
	ProviderCount() int
}

// Server represents the HTTP API server.
type Server struct {
	addr       string
	searcher   Searcher
	aggregator *aggregate.Aggregator
	converter  aggregate.CurrencyConverter
	cache      *searchCache
	server     *http.Server
	logger     *logging.Logger
	wsServer   *WebSocketServer // optional WebSocket server for streaming
}

// searchStats describes how one search response was produced.
type searchStats struct {
	ProvidersTotal  int    `json:"providers_total"`
	ProvidersFailed int    `json:"providers_failed"`
	Cache           string `json:"cache"`
	DurationMs      int64  `json:"duration_ms"`
}

// searchResponse is the body of a /v1/search reply.
type searchResponse struct {
	Results []aggregate.Result `json:"results"`
	Stats   searchStats        `json:"stats"`
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, searcher Searcher, agg *aggregate.Aggregator, converter aggregate.CurrencyConverter, cacheTTL time.Duration, logger *logging.Logger) *Server {
	return &Server{
		addr:       addr,
		searcher:   searcher,
		aggregator: agg,
		converter:  converter,
		cache:      newSearchCache(cacheTTL),
		logger:     logger,
	}
}

// SetWebSocketServer sets the WebSocket server for streaming updates.
func (s *Server) SetWebSocketServer(ws *WebSocketServer) {
	s.wsServer = ws
}

// Handler returns the server's route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/search", s.handleSearch)
	mux.HandleFunc("/v1/convert", s.handleConvert)
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealth handles the /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleSearch handles the /v1/search endpoint.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest(r.URL.Path, status, time.Since(start))
	}()

	query, err := parseSearchQuery(r)
	if err != nil {
		status = "400"
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cached, hit, err := s.cache.getOrFetch(query.CacheKey(), func() (*searchResponse, error) {
		return s.runSearch(r.Context(), query)
	})
	if err != nil {
		status = "503"
		metrics.RecordSearch(string(query.Service), "error", time.Since(start))
		s.logger.Error("Search failed", "service", string(query.Service), "error", err.Error())
		http.Error(w, "search failed", http.StatusServiceUnavailable)
		return
	}

	// Copy so per-request stats don't mutate the cached response.
	response := *cached
	response.Stats.Cache = "miss"
	if hit {
		response.Stats.Cache = "hit"
		metrics.RecordResultCacheHit()
	}
	response.Stats.DurationMs = time.Since(start).Milliseconds()

	metrics.RecordSearch(string(query.Service), "ok", time.Since(start))
	s.sendJSON(w, response)
}

// runSearch performs the provider fan-out and aggregation for one query.
func (s *Server) runSearch(ctx context.Context, query inventory.Query) (*searchResponse, error) {
	batches := s.searcher.Search(ctx, query)

	failed := 0
	for _, batch := range batches {
		if !batch.Success {
			failed++
		}
	}

	results := s.aggregator.Aggregate(ctx, batches, query.Service)
	if results == nil {
		results = []aggregate.Result{}
	}

	s.logger.Info("Search completed",
		"service", string(query.Service),
		"destination", query.Destination,
		"results", len(results),
		"providers_failed", failed)

	return &searchResponse{
		Results: results,
		Stats: searchStats{
			ProvidersTotal:  s.searcher.ProviderCount(),
			ProvidersFailed: failed,
		},
	}, nil
}

// handleConvert handles the /v1/convert endpoint.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest(r.URL.Path, status, time.Since(start))
	}()

	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		status = "400"
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		status = "400"
		http.Error(w, "from and to are required", http.StatusBadRequest)
		return
	}

	converted, err := s.converter.Convert(r.Context(), amount, from, to)
	if err != nil {
		status = "502"
		s.logger.Error("Conversion failed", "from", from, "to", to, "error", err.Error())
		http.Error(w, "conversion failed", http.StatusBadGateway)
		return
	}

	s.sendJSON(w, map[string]interface{}{
		"amount":    amount.InexactFloat64(),
		"from":      from,
		"to":        to,
		"converted": converted.InexactFloat64(),
	})
}

// parseSearchQuery extracts and validates search parameters.
func parseSearchQuery(r *http.Request) (inventory.Query, error) {
	q := r.URL.Query()

	service, err := inventory.ParseServiceType(q.Get("service"))
	if err != nil {
		return inventory.Query{}, err
	}

	destination := q.Get("destination")
	if destination == "" {
		return inventory.Query{}, fmt.Errorf("destination is required")
	}

	query := inventory.Query{
		Service:     service,
		Destination: destination,
		Origin:      q.Get("origin"),
		CheckIn:     q.Get("checkin"),
		Date:        q.Get("date"),
	}
	if nights := q.Get("nights"); nights != "" {
		n, err := strconv.Atoi(nights)
		if err != nil || n < 1 {
			return inventory.Query{}, fmt.Errorf("invalid nights: %q", nights)
		}
		query.Nights = n
	}
	if guests := q.Get("guests"); guests != "" {
		n, err := strconv.Atoi(guests)
		if err != nil || n < 1 {
			return inventory.Query{}, fmt.Errorf("invalid guests: %q", guests)
		}
		query.Guests = n
	}

	return query, nil
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
