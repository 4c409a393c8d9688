// Package events publishes audit records to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/unstoppabledomains/nomulus/internal/audit"
	"github.com/unstoppabledomains/nomulus/pkg/platform/circuit"
)

// ErrCircuitOpen is returned when events are being dropped because the
// brokers have been failing. Audit publishing is best effort; callers log
// and move on.
var ErrCircuitOpen = errors.New("audit publisher circuit open")

// KafkaPublisher writes audit events to a single topic, keyed by resource ID
// so all events for a resource land in one partition in order. A circuit
// breaker sheds produces while the brokers are down, with a periodic probe
// to detect recovery.
type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	breaker *circuit.Breaker

	mu        sync.Mutex
	lastProbe time.Time
}

// probeInterval is how often an open circuit lets one produce through.
const probeInterval = 30 * time.Second

// NewKafkaPublisher connects to the given brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{
		client:  client,
		topic:   topic,
		breaker: circuit.New("kafka-audit", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(1)),
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event audit.Event) error {
	if p.breaker.IsOpen() && !p.shouldProbe() {
		return ErrCircuitOpen
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ResourceID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.breaker.RecordFailure()
		return fmt.Errorf("produce audit event: %w", err)
	}
	p.breaker.RecordSuccess()
	return nil
}

// shouldProbe rations attempts while the circuit is open so one produce at
// a time can test whether the brokers recovered.
func (p *KafkaPublisher) shouldProbe() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.lastProbe) < probeInterval {
		return false
	}
	p.lastProbe = time.Now()
	return true
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
