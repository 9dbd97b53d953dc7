package scheduler

import (
	"context"
	"errors"
	"time"

	"credit-auction/internal/auctionerrors"
	"credit-auction/internal/events"
	"credit-auction/internal/models"
	"credit-auction/internal/registry"
	"credit-auction/utils"
)

// Settler consumes auctions the tick has moved to ended.
type Settler interface {
	Settle(ctx context.Context, auctionID string) (models.Snapshot, error)
}

// Scheduler drives price decay on a fixed cadence, independent of bid
// traffic. A delayed tick replays every missed decrement interval in one
// catch-up step, so pauses delay price drops but never lose them.
type Scheduler struct {
	registry   *registry.Registry
	settler    Settler
	notifier   events.Sink
	interval   time.Duration
	endAtFloor bool
}

// New creates a scheduler ticking at the given interval.
func New(reg *registry.Registry, settler Settler, notifier events.Sink, interval time.Duration, endAtFloor bool) *Scheduler {
	return &Scheduler{
		registry:   reg,
		settler:    settler,
		notifier:   notifier,
		interval:   interval,
		endAtFloor: endAtFloor,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	utils.Info("scheduler started", map[string]any{
		"tick_interval": s.interval.String(),
		"end_at_floor":  s.endAtFloor,
	})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.Info("scheduler stopping", nil)
			return
		case <-ticker.C:
			s.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick advances every live auction to now: activates due pending auctions,
// replays elapsed price decrements, ends expired auctions and hands newly
// ended ones to the settlement coordinator. A tick that finds an auction
// already concluded by a concurrent bid is a no-op for it.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, a := range s.registry.All() {
		snap, changed := a.ApplyPriceDecay(now, s.endAtFloor)
		if changed {
			s.notifier.StateChanged(ctx, snap)
			utils.Info("auction ticked", map[string]any{
				"auction_id":    snap.AuctionID,
				"status":        snap.Status,
				"current_price": snap.CurrentPrice,
			})
		}

		if snap.Status == models.AuctionEnded {
			if _, err := s.settler.Settle(ctx, snap.AuctionID); err != nil &&
				!errors.Is(err, auctionerrors.ErrNotReadyForSettlement) {
				utils.Error("settlement failed, will retry next tick", map[string]any{
					"auction_id": snap.AuctionID,
					"error":      err.Error(),
				})
			}
		}
	}

	if evicted := s.registry.Sweep(now); evicted > 0 {
		utils.Info("registry swept", map[string]any{"evicted": evicted})
	}
}
