package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// StoreHealth remembers the outcome of the last store probe.
type StoreHealth struct {
	store KVStore

	mu        sync.RWMutex
	healthy   bool
	checkedAt time.Time
	lastErr   string
}

func NewStoreHealth(store KVStore) *StoreHealth {
	// optimistic until the first probe says otherwise
	return &StoreHealth{store: store, healthy: true}
}

// Probe pings the store and records the result.
func (h *StoreHealth) Probe(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := h.store.Ping(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	wasHealthy := h.healthy
	h.healthy = err == nil
	h.checkedAt = time.Now()
	h.lastErr = ""
	if err != nil {
		h.lastErr = err.Error()
		if wasHealthy {
			log.Printf("⚠️ [STORE] Health probe failed: %v", err)
		}
	} else if !wasHealthy {
		log.Println("✅ [STORE] Store reachable again")
	}
	return err
}

// Status reports the last probe. The error text is for logs only, never for clients.
func (h *StoreHealth) Status() (healthy bool, checkedAt time.Time, lastErr string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy, h.checkedAt, h.lastErr
}
