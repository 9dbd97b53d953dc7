package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-auction/internal/auction"
	"credit-auction/internal/auctionerrors"
	"credit-auction/internal/events"
	"credit-auction/internal/models"
	"credit-auction/internal/registry"
	"credit-auction/internal/repository"
	"credit-auction/utils"
)

// AuctionService is the bid admission and matching engine. It turns every
// incoming bid request into exactly one terminal Bid record, coordinated
// through the per-auction state machines held by the registry.
type AuctionService struct {
	registry *registry.Registry
	repo     repository.AuctionDB
	notifier events.Sink
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(reg *registry.Registry, repo repository.AuctionDB, notifier events.Sink) *AuctionService {
	return &AuctionService{
		registry: reg,
		repo:     repo,
		notifier: notifier,
	}
}

// CreateAuctionParams carries the fixed parameters of a new auction.
type CreateAuctionParams struct {
	CreditID          string
	Quantity          int
	StartPrice        float64
	FloorPrice        float64
	PriceDecrement    float64
	DecrementInterval time.Duration
	StartTime         time.Time
	EndTime           time.Time
}

// BidResult is the structured outcome of a bid submission. Bid carries the
// terminal status; CurrentPrice and Remaining let a rejected or outbid
// client retry immediately with updated parameters.
type BidResult struct {
	Bid          models.Bid
	CurrentPrice float64
	Remaining    int
}

// CreateAuction validates parameters, registers a live state machine and
// persists the auction record. Auctions with a future start time begin
// pending; otherwise they are active immediately.
func (s *AuctionService) CreateAuction(ctx context.Context, p CreateAuctionParams) (models.Auction, error) {
	if err := validateParams(p); err != nil {
		return models.Auction{}, err
	}

	now := time.Now().UTC()
	status := models.AuctionActive
	if p.StartTime.After(now) {
		status = models.AuctionPending
	}

	record := models.Auction{
		AuctionID:         utils.GenerateID(),
		CreditID:          p.CreditID,
		Quantity:          p.Quantity,
		Remaining:         p.Quantity,
		StartPrice:        p.StartPrice,
		CurrentPrice:      p.StartPrice,
		FloorPrice:        p.FloorPrice,
		PriceDecrement:    p.PriceDecrement,
		DecrementInterval: p.DecrementInterval,
		StartTime:         p.StartTime,
		EndTime:           p.EndTime,
		LastPriceUpdate:   p.StartTime,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.RecordAuction(ctx, record); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to record auction for credit %s: %w", p.CreditID, err)
	}
	if err := s.registry.Add(auction.New(record)); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to register auction: %w", err)
	}

	utils.Info("auction created", map[string]any{
		"auction_id": record.AuctionID,
		"credit_id":  record.CreditID,
		"quantity":   record.Quantity,
		"status":     record.Status,
	})
	return record, nil
}

func validateParams(p CreateAuctionParams) error {
	switch {
	case p.CreditID == "":
		return fmt.Errorf("service: %w - missing creditID", auctionerrors.ErrInvalidAuction)
	case p.Quantity <= 0:
		return fmt.Errorf("service: %w - non-positive quantity", auctionerrors.ErrInvalidAuction)
	case p.StartPrice <= 0:
		return fmt.Errorf("service: %w - non-positive start price", auctionerrors.ErrInvalidAuction)
	case p.FloorPrice < 0 || p.FloorPrice > p.StartPrice:
		return fmt.Errorf("service: %w - floor price must be between 0 and start price", auctionerrors.ErrInvalidAuction)
	case p.PriceDecrement <= 0:
		return fmt.Errorf("service: %w - non-positive price decrement", auctionerrors.ErrInvalidAuction)
	case p.DecrementInterval <= 0:
		return fmt.Errorf("service: %w - non-positive decrement interval", auctionerrors.ErrInvalidAuction)
	case !p.EndTime.After(p.StartTime):
		return fmt.Errorf("service: %w - end time must be after start time", auctionerrors.ErrInvalidAuction)
	}
	return nil
}

// StartAuction explicitly activates a pending auction.
func (s *AuctionService) StartAuction(ctx context.Context, auctionID string) (models.Snapshot, error) {
	a, err := s.registry.Get(auctionID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("service: %w", err)
	}

	snap, err := a.Start(time.Now().UTC())
	if err != nil {
		return snap, fmt.Errorf("service: %w", err)
	}
	s.notifier.StateChanged(ctx, snap)

	utils.Info("auction started", map[string]any{"auction_id": auctionID})
	return snap, nil
}

// SubmitBid admits a bid against the auction's state at this instant. The
// outcome is always persisted as a terminal Bid record, including rejections;
// the returned error (if any) wraps the admission sentinel so handlers can
// map it. Two concurrent submissions can never jointly over-allocate: the
// per-auction reserve is the single serialization point.
func (s *AuctionService) SubmitBid(ctx context.Context, auctionID, userID, companyID string, bidPrice float64, quantity int) (BidResult, error) {
	if err := validateBid(auctionID, userID, bidPrice, quantity); err != nil {
		return BidResult{}, err
	}

	a, err := s.registry.Get(auctionID)
	if err != nil {
		return BidResult{}, fmt.Errorf("service: %w", err)
	}

	now := time.Now().UTC()
	snap, seq, reserveErr := a.Reserve(quantity, bidPrice, now)

	bid := models.Bid{
		BidID:     utils.GenerateID(),
		AuctionID: auctionID,
		UserID:    userID,
		CompanyID: companyID,
		BidPrice:  bidPrice,
		Quantity:  quantity,
		CreatedAt: now,
	}

	switch {
	case reserveErr == nil:
		bid.Status = models.BidAccepted
		bid.Sequence = seq
	case errors.Is(reserveErr, auctionerrors.ErrPriceMismatch):
		bid.Status = models.BidOutbid
		bid.Reason = "bid price below current price"
	case errors.Is(reserveErr, auctionerrors.ErrInsufficientQuantity):
		bid.Status = models.BidRejected
		bid.Reason = "insufficient remaining quantity"
	case errors.Is(reserveErr, auctionerrors.ErrAuctionNotActive):
		bid.Status = models.BidRejected
		bid.Reason = "auction not open"
	default:
		// Programming-invariant violation: abort without an audit record.
		return BidResult{}, fmt.Errorf("service: reserve failed for auction %s: %w", auctionID, reserveErr)
	}

	if err := s.repo.RecordBid(ctx, bid); err != nil {
		return BidResult{}, fmt.Errorf("service: failed to record bid for auction %s by user %s: %w", auctionID, userID, err)
	}

	result := BidResult{Bid: bid, CurrentPrice: snap.CurrentPrice, Remaining: snap.Remaining}

	if reserveErr != nil {
		return result, fmt.Errorf("service: bid %s: %w", bid.BidID, reserveErr)
	}

	s.notifier.StateChanged(ctx, snap)
	utils.Info("bid accepted", map[string]any{
		"auction_id": auctionID,
		"bid_id":     bid.BidID,
		"user_id":    userID,
		"quantity":   quantity,
		"bid_price":  bidPrice,
		"remaining":  snap.Remaining,
	})
	return result, nil
}

func validateBid(auctionID, userID string, bidPrice float64, quantity int) error {
	if auctionID == "" || userID == "" {
		return fmt.Errorf("service: %w - missing auctionID or userID", auctionerrors.ErrInvalidBid)
	}
	if bidPrice <= 0 {
		return fmt.Errorf("service: %w - non-positive bid price", auctionerrors.ErrInvalidBid)
	}
	if quantity <= 0 {
		return fmt.Errorf("service: %w - non-positive quantity", auctionerrors.ErrInvalidBid)
	}
	return nil
}

// GetSnapshot returns the immutable current view of one auction.
func (s *AuctionService) GetSnapshot(auctionID string) (models.Snapshot, error) {
	if auctionID == "" {
		return models.Snapshot{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}
	a, err := s.registry.Get(auctionID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("service: %w", err)
	}
	return a.Snapshot(), nil
}

// ListAuctions returns snapshots of every live auction.
func (s *AuctionService) ListAuctions() []models.Snapshot {
	live := s.registry.All()
	out := make([]models.Snapshot, 0, len(live))
	for _, a := range live {
		out = append(out, a.Snapshot())
	}
	return out
}

// GetBidsForAuction returns the auction's full append-only bid audit log.
func (s *AuctionService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidAuction)
	}
	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// CancelAuction is the administrative override ending an auction without
// settlement. Valid only from pending or active.
func (s *AuctionService) CancelAuction(ctx context.Context, auctionID, reason string) (models.Snapshot, error) {
	a, err := s.registry.Get(auctionID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("service: %w", err)
	}

	snap, err := a.Cancel(time.Now().UTC())
	if err != nil {
		return snap, fmt.Errorf("service: %w", err)
	}
	s.notifier.StateChanged(ctx, snap)

	utils.Info("auction cancelled", map[string]any{
		"auction_id": auctionID,
		"reason":     reason,
	})
	return snap, nil
}
