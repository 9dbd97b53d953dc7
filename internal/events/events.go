package events

import (
	"encoding/json"
	"time"

	"credit-auction/internal/models"
)

const (
	EventAuctionStateChanged = "AuctionStateChanged"
	EventAuctionSettled      = "AuctionSettled"
)

const (
	TopicAuctionStateChanged = "auction.state.changed"
	TopicAuctionSettled      = "auction.settled"
)

// Envelope is the versioned wrapper every published event rides in.
type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "credit-auction"
	CorrelationID string          `json:"correlation_id,omitempty"` // auction_id
	Payload       json.RawMessage `json:"payload"`
}

// StateChangedPayload is emitted after any successful reserve, price decay
// transition, cancel or settle, so the cache layer can invalidate.
type StateChangedPayload struct {
	AuctionID    string               `json:"auction_id"`
	Status       models.AuctionStatus `json:"status"`
	CurrentPrice float64              `json:"current_price"`
	Remaining    int                  `json:"remaining"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// SettlementPayload is the terminal settlement event consumed by the
// billing/notification collaborators. Delivered at least once; the state
// transition it reports committed exactly once.
type SettlementPayload struct {
	AuctionID  string    `json:"auction_id"`
	CreditID   string    `json:"credit_id"`
	FinalPrice float64   `json:"final_price"`
	WinnerID   string    `json:"winner_id,omitempty"`
	SettledAt  time.Time `json:"settled_at"`
}

// PartitionKey keeps every event for one auction on one partition, so
// consumers observe them in order.
func PartitionKey(auctionID string) []byte { return []byte(auctionID) }

// MustMarshal panics on marshal failure. Payload types here are plain structs;
// a failure is a programming error.
func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
