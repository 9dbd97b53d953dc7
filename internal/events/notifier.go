package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"credit-auction/internal/models"
)

// Sink receives state-change signals from the auction core. Implementations
// include the Kafka emitter, the cache invalidator and the websocket feed.
// Sinks are called after the auction lock is released and must not block.
type Sink interface {
	StateChanged(ctx context.Context, snap models.Snapshot)
	Settled(ctx context.Context, snap models.Snapshot)
}

// Fanout delivers each signal to every registered sink in order.
type Fanout struct {
	sinks []Sink
}

// NewFanout builds a fan-out over the given sinks. Nil sinks are skipped so
// callers can pass optional collaborators directly.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) StateChanged(ctx context.Context, snap models.Snapshot) {
	for _, s := range f.sinks {
		s.StateChanged(ctx, snap)
	}
}

func (f *Fanout) Settled(ctx context.Context, snap models.Snapshot) {
	for _, s := range f.sinks {
		s.Settled(ctx, snap)
	}
}

// KafkaSink publishes state-changed and settlement envelopes.
type KafkaSink struct {
	producer *Producer
	service  string
}

// NewKafkaSink wraps a producer as a Sink.
func NewKafkaSink(p *Producer, service string) *KafkaSink {
	return &KafkaSink{producer: p, service: service}
}

func (k *KafkaSink) envelope(eventType, auctionID string, payload any) []byte {
	return MustMarshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      k.service,
		CorrelationID: auctionID,
		Payload:       MustMarshal(payload),
	})
}

func (k *KafkaSink) StateChanged(_ context.Context, snap models.Snapshot) {
	value := k.envelope(EventAuctionStateChanged, snap.AuctionID, StateChangedPayload{
		AuctionID:    snap.AuctionID,
		Status:       snap.Status,
		CurrentPrice: snap.CurrentPrice,
		Remaining:    snap.Remaining,
		UpdatedAt:    snap.AsOf,
	})
	k.producer.Publish(TopicAuctionStateChanged, PartitionKey(snap.AuctionID), value)
}

func (k *KafkaSink) Settled(_ context.Context, snap models.Snapshot) {
	value := k.envelope(EventAuctionSettled, snap.AuctionID, SettlementPayload{
		AuctionID:  snap.AuctionID,
		CreditID:   snap.CreditID,
		FinalPrice: snap.FinalPrice,
		WinnerID:   snap.WinnerID,
		SettledAt:  snap.AsOf,
	})
	k.producer.Publish(TopicAuctionSettled, PartitionKey(snap.AuctionID), value)
}
