package cache

import "time"

const (
	// Cached snapshot: auction_status:{auction_id} -> models.Snapshot JSON
	KeyAuctionStatus = "auction_status:%s"
)

var (
	// TTLStatus bounds staleness even if an invalidation signal is lost.
	TTLStatus = 5 * time.Minute
)
