package auction

import (
	"fmt"
	"sync"
	"time"

	"credit-auction/internal/auctionerrors"
	"credit-auction/internal/models"
)

// Auction is the single source of truth for one auction's mutable state.
// Every mutation goes through its mutex; different auctions are fully
// independent. No I/O ever happens while the lock is held.
type Auction struct {
	mu   sync.Mutex
	seq  int64 // reservation counter, monotonic under mu
	data models.Auction
}

// New wraps an auction record into a live state machine instance.
func New(data models.Auction) *Auction {
	return &Auction{data: data}
}

// ID returns the auction identifier.
func (a *Auction) ID() string {
	return a.data.AuctionID
}

// Snapshot returns an immutable view of the auction for read-only callers.
func (a *Auction) Snapshot() models.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Auction) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		AuctionID:    a.data.AuctionID,
		CreditID:     a.data.CreditID,
		Status:       a.data.Status,
		CurrentPrice: a.data.CurrentPrice,
		FloorPrice:   a.data.FloorPrice,
		StartPrice:   a.data.StartPrice,
		Quantity:     a.data.Quantity,
		Remaining:    a.data.Remaining,
		StartTime:    a.data.StartTime,
		EndTime:      a.data.EndTime,
		WinnerID:     a.data.WinnerID,
		FinalPrice:   a.data.FinalPrice,
		AsOf:         a.data.UpdatedAt,
	}
}

// Record returns a copy of the full auction record.
func (a *Auction) Record() models.Auction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

// Start explicitly activates a pending auction, resetting its start time to
// now so that price decay counts from the actual activation moment.
func (a *Auction) Start(now time.Time) (models.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !CanTransition(a.data.Status, models.AuctionActive) {
		return a.snapshotLocked(), fmt.Errorf("start auction %s from %s: %w",
			a.data.AuctionID, a.data.Status, auctionerrors.ErrInvalidTransition)
	}
	a.data.Status = models.AuctionActive
	a.data.StartTime = now
	a.data.LastPriceUpdate = now
	a.data.UpdatedAt = now
	return a.snapshotLocked(), nil
}

// ApplyPriceDecay advances the auction clock to now. Pending auctions whose
// start time has arrived are activated. Active auctions replay every whole
// decrement interval elapsed since the last price update (catch-up ticking:
// a delayed scheduler never loses decrements, it replays them exactly once),
// clamped to the floor price. The auction transitions to ended when the hard
// deadline has passed, or when the floor is reached and endAtFloor is set.
// Calling it on an ended, settled or cancelled auction is a no-op.
func (a *Auction) ApplyPriceDecay(now time.Time, endAtFloor bool) (models.Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	changed := false

	if a.data.Status == models.AuctionPending && !now.Before(a.data.StartTime) {
		a.data.Status = models.AuctionActive
		a.data.LastPriceUpdate = a.data.StartTime
		changed = true
	}

	if a.data.Status != models.AuctionActive {
		if changed {
			a.data.UpdatedAt = now
		}
		return a.snapshotLocked(), changed
	}

	if interval := a.data.DecrementInterval; interval > 0 {
		intervals := int64(now.Sub(a.data.LastPriceUpdate) / interval)
		if intervals > 0 {
			price := a.data.CurrentPrice - a.data.PriceDecrement*float64(intervals)
			if price < a.data.FloorPrice {
				price = a.data.FloorPrice
			}
			a.data.CurrentPrice = price
			// Advance by whole consumed intervals, not to now, so replay
			// stays deterministic under scheduler delay.
			a.data.LastPriceUpdate = a.data.LastPriceUpdate.Add(time.Duration(intervals) * interval)
			changed = true
		}
	}

	if !now.Before(a.data.EndTime) {
		a.data.Status = models.AuctionEnded
		changed = true
	} else if endAtFloor && a.data.CurrentPrice == a.data.FloorPrice {
		a.data.Status = models.AuctionEnded
		changed = true
	}

	if changed {
		a.data.UpdatedAt = now
	}
	return a.snapshotLocked(), changed
}

// Reserve atomically claims quantity units at bidPrice against the current
// state. The checks run against the price at the instant of admission, not
// at submission time. A reservation that drains remaining to zero ends the
// auction in the same atomic step. Nothing is mutated on rejection.
//
// Accepted reservations get a monotonic sequence number assigned under the
// lock. Callers persist the bid record after releasing the lock, so the
// audit log's append order can diverge from reservation order; the sequence
// is the authoritative admission order (zero on rejection).
func (a *Auction) Reserve(quantity int, bidPrice float64, now time.Time) (models.Snapshot, int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if quantity <= 0 {
		return a.snapshotLocked(), 0, fmt.Errorf("reserve on auction %s: non-positive quantity %d: %w",
			a.data.AuctionID, quantity, auctionerrors.ErrInvalidBid)
	}
	if a.data.Status != models.AuctionActive || !now.Before(a.data.EndTime) {
		return a.snapshotLocked(), 0, fmt.Errorf("reserve on auction %s: status %s: %w",
			a.data.AuctionID, a.data.Status, auctionerrors.ErrAuctionNotActive)
	}
	if bidPrice < a.data.CurrentPrice {
		return a.snapshotLocked(), 0, fmt.Errorf("reserve on auction %s: bid %.2f below current %.2f: %w",
			a.data.AuctionID, bidPrice, a.data.CurrentPrice, auctionerrors.ErrPriceMismatch)
	}
	if quantity > a.data.Remaining {
		return a.snapshotLocked(), 0, fmt.Errorf("reserve on auction %s: requested %d exceeds remaining %d: %w",
			a.data.AuctionID, quantity, a.data.Remaining, auctionerrors.ErrInsufficientQuantity)
	}

	a.seq++
	a.data.Remaining -= quantity
	if a.data.Remaining == 0 {
		a.data.Status = models.AuctionEnded
	}
	a.data.UpdatedAt = now
	return a.snapshotLocked(), a.seq, nil
}

// Cancel is an administrative override, valid only from pending or active.
func (a *Auction) Cancel(now time.Time) (models.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !CanTransition(a.data.Status, models.AuctionCancelled) {
		return a.snapshotLocked(), fmt.Errorf("cancel auction %s from %s: %w",
			a.data.AuctionID, a.data.Status, auctionerrors.ErrInvalidTransition)
	}
	a.data.Status = models.AuctionCancelled
	a.data.UpdatedAt = now
	return a.snapshotLocked(), nil
}

// Settle moves an ended auction to settled and freezes the outcome. The
// returned bool reports whether this call performed the transition; a
// repeat call on a settled auction returns the stored outcome with false,
// so the caller can guarantee the settlement event fires once.
func (a *Auction) Settle(winnerID string, finalPrice float64, now time.Time) (models.Snapshot, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.data.Status == models.AuctionSettled {
		return a.snapshotLocked(), false, nil
	}
	if !CanTransition(a.data.Status, models.AuctionSettled) {
		return a.snapshotLocked(), false, fmt.Errorf("settle auction %s from %s: %w",
			a.data.AuctionID, a.data.Status, auctionerrors.ErrNotReadyForSettlement)
	}
	a.data.Status = models.AuctionSettled
	a.data.WinnerID = winnerID
	a.data.FinalPrice = finalPrice
	a.data.UpdatedAt = now
	return a.snapshotLocked(), true, nil
}
