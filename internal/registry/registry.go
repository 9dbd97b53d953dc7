package registry

import (
	"fmt"
	"sync"
	"time"

	"credit-auction/internal/auction"
	"credit-auction/internal/auctionerrors"
)

// Registry maps auction identifiers to live state-machine instances. Its lock
// guards only insert/lookup/evict, never bid logic, so unrelated auctions'
// traffic is not serialized through it.
type Registry struct {
	mu        sync.RWMutex
	auctions  map[string]*auction.Auction
	retention time.Duration
}

// New creates a registry. Concluded auctions stay resolvable for the given
// retention window before Sweep evicts them, so late read queries still work.
func New(retention time.Duration) *Registry {
	return &Registry{
		auctions:  make(map[string]*auction.Auction),
		retention: retention,
	}
}

// Add registers a new live auction instance.
func (r *Registry) Add(a *auction.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[a.ID()]; ok {
		return fmt.Errorf("registry: auction %s already registered", a.ID())
	}
	r.auctions[a.ID()] = a
	return nil
}

// Get returns the live instance for an auction id.
func (r *Registry) Get(auctionID string) (*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("registry: lookup %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return a, nil
}

// All returns the current set of live auctions. The slice is a copy; holding
// it does not block registry mutations.
func (r *Registry) All() []*auction.Auction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*auction.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		out = append(out, a)
	}
	return out
}

// Len returns the number of live auctions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.auctions)
}

// Evict removes an auction from the registry regardless of status.
func (r *Registry) Evict(auctionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.auctions, auctionID)
}

// Sweep evicts settled and cancelled auctions whose last update is older than
// the retention window. Returns the number of evicted auctions.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, a := range r.auctions {
		snap := a.Snapshot()
		if snap.Status.Terminal() && now.Sub(snap.AsOf) >= r.retention {
			delete(r.auctions, id)
			evicted++
		}
	}
	return evicted
}
