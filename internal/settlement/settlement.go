package settlement

import (
	"context"
	"fmt"
	"time"

	"credit-auction/internal/events"
	"credit-auction/internal/models"
	"credit-auction/internal/registry"
	"credit-auction/internal/repository"
	"credit-auction/utils"
)

// Coordinator converts ended auctions into settled ones, deterministically
// and exactly once. The settlement event may be delivered more than once on
// retry; the state transition itself never repeats.
type Coordinator struct {
	registry *registry.Registry
	repo     repository.AuctionDB
	notifier events.Sink
}

// NewCoordinator creates a new settlement coordinator.
func NewCoordinator(reg *registry.Registry, repo repository.AuctionDB, notifier events.Sink) *Coordinator {
	return &Coordinator{
		registry: reg,
		repo:     repo,
		notifier: notifier,
	}
}

// Settle finalizes an ended auction: final price is the current price at the
// moment the auction ended, the winner is the bidder whose accepted bid was
// admitted last (the allocation that completed exhaustion when quantity ran
// out; empty when nothing was accepted). Admission order is the reservation
// sequence stamped on each accepted bid, not the audit log's append order:
// bids are persisted after the auction lock is released, so a slow write can
// land later bids earlier in the log. Calling Settle on an already settled
// auction returns the stored outcome without re-firing the event. Fails with
// NotReadyForSettlement for any other status.
func (c *Coordinator) Settle(ctx context.Context, auctionID string) (models.Snapshot, error) {
	a, err := c.registry.Get(auctionID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("settlement: %w", err)
	}

	accepted, err := c.repo.GetAcceptedBids(ctx, auctionID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("settlement: failed to load accepted bids for auction %s: %w", auctionID, err)
	}

	winnerID := ""
	var winnerSeq int64
	for _, b := range accepted {
		if b.Sequence > winnerSeq {
			winnerSeq = b.Sequence
			winnerID = b.UserID
		}
	}

	// Price decay no-ops once the auction has ended, so the current price
	// read here is the price at the moment it ended.
	snap := a.Snapshot()
	snap, performed, err := a.Settle(winnerID, snap.CurrentPrice, time.Now().UTC())
	if err != nil {
		return snap, fmt.Errorf("settlement: %w", err)
	}
	if !performed {
		return snap, nil
	}

	c.notifier.Settled(ctx, snap)
	c.notifier.StateChanged(ctx, snap)

	utils.Info("auction settled", map[string]any{
		"auction_id":  auctionID,
		"final_price": snap.FinalPrice,
		"winner_id":   snap.WinnerID,
		"sold":        snap.Quantity - snap.Remaining,
	})
	return snap, nil
}
