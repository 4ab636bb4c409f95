package broker

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/skout/pkg/models"
)

// ErrClosed is returned by Publish after the broker has been shut down.
var ErrClosed = errors.New("broker is closed")

// defaultBufferSize is the per-subscription message buffer. A subscriber
// that falls this far behind starts losing messages; delivery is
// at-most-once by contract, so a drop is not an error.
const defaultBufferSize = 64

// Broker is the topic-based publish/subscribe bus.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*Subscription
	agents map[string]map[uint64]*Subscription
	nextID uint64
	closed bool

	dropped atomic.Uint64
}

// New creates an empty Broker.
func New() *Broker {
	return &Broker{
		topics: make(map[string]map[uint64]*Subscription),
		agents: make(map[string]map[uint64]*Subscription),
	}
}

// Publish delivers a message to its current subscribers and returns. It
// populates the ID and Timestamp fields if they are empty. A message with a
// Recipient goes only to subscriptions registered under that agent name; one
// without goes to every subscriber of its topic. Publish fails only if the
// broker is shut down.
func (b *Broker) Publish(msg models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	if msg.Recipient != "" {
		// Point-to-point: best effort, dropped without error when nobody
		// is registered under the recipient name.
		for _, sub := range b.agents[msg.Recipient] {
			b.send(sub, msg)
		}
		return nil
	}

	for _, sub := range b.topics[msg.Topic] {
		b.send(sub, msg)
	}
	return nil
}

// Broadcast publishes a broadcast message on topic.
func (b *Broker) Broadcast(topic, sender string, payload any) error {
	return b.Publish(models.Message{Topic: topic, Sender: sender, Payload: payload})
}

// Send publishes a point-to-point message addressed to recipient.
func (b *Broker) Send(recipient, topic, sender string, payload any) error {
	return b.Publish(models.Message{Topic: topic, Sender: sender, Recipient: recipient, Payload: payload})
}

// Subscribe registers a subscription for broadcast messages on topic. The
// subscription runs until cancelled.
func (b *Broker) Subscribe(topic string) *Subscription {
	return b.register(b.topics, topic)
}

// SubscribeAgent registers a subscription under an agent's own name. It
// receives every point-to-point message addressed to that name, regardless
// of topic.
func (b *Broker) SubscribeAgent(name string) *Subscription {
	return b.register(b.agents, name)
}

// Close shuts the broker down and cancels all subscriptions. Subsequent
// Publish calls return ErrClosed.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var subs []*Subscription
	for _, m := range b.topics {
		for _, sub := range m {
			subs = append(subs, sub)
		}
	}
	for _, m := range b.agents {
		for _, sub := range m {
			subs = append(subs, sub)
		}
	}
	b.topics = make(map[string]map[uint64]*Subscription)
	b.agents = make(map[string]map[uint64]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// DroppedCount returns the total number of messages dropped because a
// subscriber's buffer was full.
func (b *Broker) DroppedCount() uint64 {
	return b.dropped.Load()
}

func (b *Broker) register(reg map[string]map[uint64]*Subscription, key string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		broker: b,
		key:    key,
		id:     b.nextID,
		ch:     make(chan models.Message, defaultBufferSize),
	}
	if b.closed {
		// A subscription against a closed broker is inert: registered
		// nowhere, channel already closed.
		close(sub.ch)
		sub.closed = true
		return sub
	}
	if reg[key] == nil {
		reg[key] = make(map[uint64]*Subscription)
	}
	reg[key][sub.id] = sub
	sub.registry = reg
	return sub
}

// send delivers msg to one subscription without blocking the publisher.
func (b *Broker) send(sub *Subscription, msg models.Message) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- msg:
	default:
		count := b.dropped.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[broker] WARNING: subscriber buffer full, dropped message (total dropped: %d): topic=%s", count, msg.Topic)
		}
	}
}

// Subscription is a lazy stream of messages for one subscriber. Stop pulling
// and call Cancel to end it.
type Subscription struct {
	broker   *Broker
	registry map[string]map[uint64]*Subscription
	key      string
	id       uint64

	mu     sync.Mutex
	ch     chan models.Message
	closed bool
}

// Messages returns the subscription's delivery channel. The channel is
// closed after Cancel or broker shutdown.
func (s *Subscription) Messages() <-chan models.Message {
	return s.ch
}

// Cancel unregisters the subscription and closes its channel. Messages
// published after Cancel returns are not delivered.
func (s *Subscription) Cancel() {
	s.broker.mu.Lock()
	if s.registry != nil {
		if m := s.registry[s.key]; m != nil {
			delete(m, s.id)
			if len(m) == 0 {
				delete(s.registry, s.key)
			}
		}
	}
	s.broker.mu.Unlock()

	s.close()
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
