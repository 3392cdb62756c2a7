// Package broadcaster drains the event outbox to Kafka. Every matcher
// event is staged durably before it is published, marked SENT before
// the send and ACKED after the broker confirms, which gives
// at-least-once delivery across crashes.
package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tyr/infra/outbox"
)

const defaultBatch = 256

// producer is the slice of sarama.SyncProducer the broadcaster needs.
type producer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
}

type Broadcaster struct {
	outbox   *outbox.Outbox
	producer producer
	closer   func() error
	topic    string
	interval time.Duration
	log      *zap.SugaredLogger
}

func New(ob *outbox.Outbox, brokers []string, topic string, log *zap.SugaredLogger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "tyr-broadcaster-" + uuid.NewString()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	b := newWithProducer(ob, p, topic, log)
	b.closer = p.Close
	return b, nil
}

func newWithProducer(ob *outbox.Outbox, p producer, topic string, log *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{
		outbox:   ob,
		producer: p,
		topic:    topic,
		interval: 250 * time.Millisecond,
		log:      log,
	}
}

// Run pumps the outbox until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Infow("broadcaster started", "topic", b.topic)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	// entries stuck in SENT are from a previous run that died between
	// send and ack; republishing them is what at-least-once means
	b.drain(outbox.StateSent)

	for {
		select {
		case <-ctx.Done():
			b.log.Info("broadcaster stopped")
			return
		case <-ticker.C:
			b.drain(outbox.StateSent)
			b.drain(outbox.StateNew)
		}
	}
}

func (b *Broadcaster) drain(state outbox.State) {
	err := b.outbox.Scan(state, defaultBatch, func(e outbox.Entry) error {
		return b.publish(e)
	})
	if err != nil {
		b.log.Errorw("outbox scan failed", "state", state.String(), "error", err)
	}
}

func (b *Broadcaster) publish(e outbox.Entry) error {
	if err := b.outbox.MarkSent(e.Seq, e.Index); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(e.Seq, 10)),
		Value: sarama.ByteEncoder(e.Payload),
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		// stays SENT; the next pass retries it
		b.log.Warnw("publish failed", "seq", e.Seq, "index", e.Index, "error", err)
		return nil
	}
	return b.outbox.MarkAcked(e.Seq, e.Index)
}

func (b *Broadcaster) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}
