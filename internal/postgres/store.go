package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"credit-auction/internal/auctionerrors"
	model "credit-auction/internal/models"
)

// Store is the Postgres-backed implementation of repository.AuctionDB.
// Bids are insert-only; the table carries the full audit trail.
type Store struct {
	DB *pgxpool.Pool
}

// NewStore wraps a connected pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// RecordAuction persists the auction record at creation time.
func (s *Store) RecordAuction(ctx context.Context, a model.Auction) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO auctions(
			id, credit_id, quantity, remaining, start_price, current_price,
			floor_price, price_decrement, decrement_interval_secs,
			start_time, end_time, last_price_update, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO NOTHING`,
		a.AuctionID, a.CreditID, a.Quantity, a.Remaining, a.StartPrice, a.CurrentPrice,
		a.FloorPrice, a.PriceDecrement, int64(a.DecrementInterval.Seconds()),
		a.StartTime, a.EndTime, a.LastPriceUpdate, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("record auction %s: %w", a.AuctionID, err)
	}
	return nil
}

// RecordBid appends a bid to the audit log.
func (s *Store) RecordBid(ctx context.Context, bid model.Bid) error {
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO bids(id, auction_id, user_id, company_id, bid_price, quantity, status, reason, sequence, created_at)
		SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
		WHERE EXISTS (SELECT 1 FROM auctions WHERE id = $2)`,
		bid.BidID, bid.AuctionID, bid.UserID, bid.CompanyID,
		bid.BidPrice, bid.Quantity, bid.Status, bid.Reason, bid.Sequence, bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
	}
	return nil
}

// GetBidsByAuction returns all bids for an auction. Fails with ErrNoBids for
// an auction that exists but has no bids recorded yet.
func (s *Store) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	bids, err := s.queryBids(ctx, auctionID, `
		SELECT id, auction_id, user_id, company_id, bid_price, quantity, status, reason, sequence, created_at
		FROM bids WHERE auction_id = $1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return bids, nil
}

// GetAcceptedBids returns only accepted bids, in reservation order. An empty
// slice is a valid result; settlement treats it as a winnerless auction.
func (s *Store) GetAcceptedBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	return s.queryBids(ctx, auctionID, `
		SELECT id, auction_id, user_id, company_id, bid_price, quantity, status, reason, sequence, created_at
		FROM bids WHERE auction_id = $1 AND status = 'accepted' ORDER BY sequence ASC`)
}

func (s *Store) queryBids(ctx context.Context, auctionID, query string) ([]model.Bid, error) {
	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, auctionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	if !exists {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}

	rows, err := s.DB.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	bids := make([]model.Bid, 0)
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.UserID, &b.CompanyID,
			&b.BidPrice, &b.Quantity, &b.Status, &b.Reason, &b.Sequence, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bid for auction %s: %w", auctionID, err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}
