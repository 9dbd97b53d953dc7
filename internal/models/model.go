package models

import "time"

// AuctionStatus is the lifecycle status of an auction.
type AuctionStatus string

const (
	AuctionPending   AuctionStatus = "pending"
	AuctionActive    AuctionStatus = "active"
	AuctionEnded     AuctionStatus = "ended"
	AuctionSettled   AuctionStatus = "settled"
	AuctionCancelled AuctionStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible from s.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionSettled || s == AuctionCancelled
}

// BidStatus is the terminal outcome of a bid. It is assigned exactly once
// at admission time and never mutated afterwards.
type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
	BidOutbid   BidStatus = "outbid"
)

// Auction represents a descending-price auction over a single credit lot.
type Auction struct {
	AuctionID         string        `json:"auction_id"`
	CreditID          string        `json:"credit_id"`
	Quantity          int           `json:"quantity"`
	Remaining         int           `json:"remaining"`
	StartPrice        float64       `json:"start_price"`
	CurrentPrice      float64       `json:"current_price"`
	FloorPrice        float64       `json:"floor_price"`
	PriceDecrement    float64       `json:"price_decrement"`
	DecrementInterval time.Duration `json:"decrement_interval"` // cadence of price drops
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	LastPriceUpdate   time.Time     `json:"last_price_update"`
	Status            AuctionStatus `json:"status"`
	WinnerID          string        `json:"winner_id,omitempty"`
	FinalPrice        float64       `json:"final_price,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Bid represents one bidder's attempt to buy quantity units at bid_price.
// Bids are append-only and form the auction's audit trail. Sequence is the
// bid's position in the auction's reservation order, assigned under the
// auction lock; it is zero for bids that were not accepted. Persisted log
// order may lag reservation order, so settlement keys on Sequence.
type Bid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	CompanyID string    `json:"company_id"`
	BidPrice  float64   `json:"bid_price"`
	Quantity  int       `json:"quantity"`
	Status    BidStatus `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Sequence  int64     `json:"sequence,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is an immutable view of an auction's state for read-only callers
// (status endpoint, cache layer, price feed). It may be slightly stale; price
// and remaining only ever decrease, so staleness is always conservative.
type Snapshot struct {
	AuctionID    string        `json:"auction_id"`
	CreditID     string        `json:"credit_id"`
	Status       AuctionStatus `json:"status"`
	CurrentPrice float64       `json:"current_price"`
	FloorPrice   float64       `json:"floor_price"`
	StartPrice   float64       `json:"start_price"`
	Quantity     int           `json:"quantity"`
	Remaining    int           `json:"remaining"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	WinnerID     string        `json:"winner_id,omitempty"`
	FinalPrice   float64       `json:"final_price,omitempty"`
	AsOf         time.Time     `json:"as_of"`
}
