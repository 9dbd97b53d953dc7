package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"credit-auction/internal/models"
)

// Client is the read-through snapshot cache. The auction core is its sole
// data source; it never writes back into the core. It also implements
// events.Sink so state-changed signals invalidate the cached entry.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis at addr.
func New(addr string) *Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &Client{rdb: rdb}
}

// Snapshot returns the cached snapshot for an auction, loading it through
// the given loader on a miss. Cache failures fall back to the loader; a
// stale or missing cache can only show a conservative-or-equal view.
func (c *Client) Snapshot(ctx context.Context, auctionID string, load func() (models.Snapshot, error)) (models.Snapshot, error) {
	key := fmt.Sprintf(KeyAuctionStatus, auctionID)

	if s, err := c.rdb.Get(ctx, key).Result(); err == nil && s != "" {
		var snap models.Snapshot
		if err := json.Unmarshal([]byte(s), &snap); err == nil {
			return snap, nil
		}
	}

	snap, err := load()
	if err != nil {
		return models.Snapshot{}, err
	}

	if b, err := json.Marshal(snap); err == nil {
		_ = c.rdb.Set(ctx, key, b, TTLStatus).Err()
	}
	return snap, nil
}

// StateChanged invalidates the cached snapshot for the auction.
func (c *Client) StateChanged(ctx context.Context, snap models.Snapshot) {
	c.invalidate(ctx, snap.AuctionID)
}

// Settled invalidates the cached snapshot for the auction.
func (c *Client) Settled(ctx context.Context, snap models.Snapshot) {
	c.invalidate(ctx, snap.AuctionID)
}

func (c *Client) invalidate(ctx context.Context, auctionID string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = c.rdb.Del(ctx, fmt.Sprintf(KeyAuctionStatus, auctionID)).Err()
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
