package store

import (
	"sync"

	"github.com/joasgard/basisdesk/internal/domain"
)

// Rates holds the latest engine-pushed market rate per asset.
type Rates struct {
	mu      sync.RWMutex
	byAsset map[string]domain.Rate
}

// NewRates creates an empty rates store.
func NewRates() *Rates {
	return &Rates{byAsset: make(map[string]domain.Rate)}
}

// Set stores the latest rate for an asset, replacing any previous value.
func (r *Rates) Set(rate domain.Rate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAsset[rate.Asset] = rate
}

// Get returns the latest rate for an asset.
func (r *Rates) Get(asset string) (domain.Rate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rate, ok := r.byAsset[asset]
	return rate, ok
}
