package repository

import (
	"context"
	"fmt"
	"sync"

	"credit-auction/internal/auctionerrors"
	model "credit-auction/internal/models"
)

// AuctionDB defines the durable store for the auction system. Bid records are
// append-only: they are never updated or deleted and form the audit trail
// from which any settlement decision can be reconstructed.
type AuctionDB interface {
	RecordAuction(ctx context.Context, a model.Auction) error
	RecordBid(ctx context.Context, bid model.Bid) error
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetAcceptedBids(ctx context.Context, auctionID string) ([]model.Bid, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction // key: auctionID -> value: auction record at creation
	bids     map[string][]model.Bid   // key: auctionID -> value: bids in admission order
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions: make(map[string]model.Auction),
		bids:     make(map[string][]model.Bid),
	}
}

// RecordAuction stores the auction record at creation time
func (r *MemoryRepo) RecordAuction(_ context.Context, a model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.auctions[a.AuctionID] = a
	return nil
}

// RecordBid appends a bid to the auction's audit log
func (r *MemoryRepo) RecordBid(_ context.Context, bid model.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[bid.AuctionID]; !ok {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
	}
	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)
	return nil
}

// GetBidsByAuction returns all bids for an auction in log order. Fails with
// ErrNoBids for an auction that exists but has no bids recorded yet.
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if len(r.bids[auctionID]) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return append([]model.Bid(nil), r.bids[auctionID]...), nil
}

// GetAcceptedBids returns only the accepted bids for an auction, in admission order
func (r *MemoryRepo) GetAcceptedBids(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get accepted bids for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}

	accepted := make([]model.Bid, 0)
	for _, b := range r.bids[auctionID] {
		if b.Status == model.BidAccepted {
			accepted = append(accepted, b)
		}
	}
	return accepted, nil
}
