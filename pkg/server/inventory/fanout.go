package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tripgrid/faresearch/pkg/logging"
	"github.com/tripgrid/faresearch/pkg/metrics"
)

// Fanout issues one search against every provider concurrently and collects
// the raw batches. A provider failure becomes a success=false batch so the
// aggregation filter step sees it; it never fails the whole search.
type Fanout struct {
	providers []Provider
	timeout   time.Duration
	logger    *logging.Logger

	// rotation offset so no provider is permanently first in launch order
	next atomic.Uint32
}

// NewFanout creates a Fanout over the given providers.
func NewFanout(providers []Provider, timeout time.Duration, logger *logging.Logger) *Fanout {
	return &Fanout{
		providers: providers,
		timeout:   timeout,
		logger:    logger,
	}
}

// ProviderCount returns the number of configured providers.
func (f *Fanout) ProviderCount() int {
	return len(f.providers)
}

// Search queries all providers jointly and returns their batches. Every
// provider call carries the search's correlation id; one is assigned if the
// query has none.
func (f *Fanout) Search(ctx context.Context, query Query) []Batch {
	if len(f.providers) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if query.CorrelationID == "" {
		query.CorrelationID = uuid.NewString()
	}

	f.logger.Debug("Fanning out search",
		"service", string(query.Service),
		"destination", query.Destination,
		"providers", len(f.providers),
		"correlation_id", query.CorrelationID)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		batches = make([]Batch, 0, len(f.providers))
	)

	for _, provider := range f.rotated() {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()

			batch, err := p.Search(ctx, query)
			if err != nil {
				metrics.RecordProviderBatch(p.Name(), "error")
				f.logger.Warn("Provider search failed",
					"provider", p.Name(),
					"correlation_id", query.CorrelationID,
					"error", err.Error())
				batch = Batch{Success: false, Provider: p.Name()}
			} else {
				if batch.Provider == "" {
					batch.Provider = p.Name()
				}
				status := "ok"
				if !batch.Success {
					status = "failed"
				}
				metrics.RecordProviderBatch(p.Name(), status)
			}

			mu.Lock()
			batches = append(batches, batch)
			mu.Unlock()
		}(provider)
	}

	wg.Wait()
	return batches
}

// rotated returns the provider list starting at a per-search offset.
func (f *Fanout) rotated() []Provider {
	n := len(f.providers)
	start := int(f.next.Add(1)-1) % n

	order := make([]Provider, 0, n)
	order = append(order, f.providers[start:]...)
	order = append(order, f.providers[:start]...)
	return order
}
