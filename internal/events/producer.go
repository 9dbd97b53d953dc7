package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"credit-auction/utils"
)

// Producer publishes event envelopes to Kafka through a buffered inbox so
// callers never block on broker I/O. Topic is chosen per message.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	done    chan struct{}
	closeCh chan struct{}
}

// NewProducer creates a producer for the given brokers. buf sizes the inbox.
func NewProducer(brokers []string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		inbox:   make(chan kafka.Message, buf),
		done:    make(chan struct{}),
		closeCh: make(chan struct{}),
	}
}

// Start runs the publish loop until ctx is cancelled, then flushes whatever
// is left in the inbox before closing the writer. The inbox channel is never
// closed: Publish may race with shutdown, and sending on a closed channel
// would panic. Shutdown is signalled through the done channel instead.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(p.done)
				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						_ = p.w.Close()
						close(p.closeCh)
						return
					}
				}
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		utils.Error("failed to publish event", map[string]any{
			"topic": m.Topic,
			"error": err.Error(),
		})
	}
}

// Publish enqueues an envelope. Drops with a warning when the inbox is full
// or the producer has stopped, rather than blocking the auction hot path.
// Safe to call concurrently with shutdown.
func (p *Producer) Publish(topic string, key, value []byte) {
	select {
	case <-p.done:
		utils.Warn("producer stopped, dropping event", map[string]any{"topic": topic})
		return
	default:
	}
	m := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	}
	select {
	case p.inbox <- m:
	default:
		utils.Warn("event inbox full, dropping event", map[string]any{"topic": topic})
	}
}

// WaitClosed blocks until the publish loop has flushed and exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
