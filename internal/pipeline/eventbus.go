package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrBusClosed is returned by Publish after Close
	ErrBusClosed = errors.New("event bus is shutting down")

	// ErrBufferFull is returned when the event was dropped
	ErrBufferFull = errors.New("event buffer is full")
)

// EventHandler handles one event
type EventHandler func(ctx context.Context, event *Event) error

// Subscription represents an event subscription
type Subscription struct {
	ID         string
	EventTypes []EventType
	Handler    EventHandler
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	active     bool
}

func (s *Subscription) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Subscription) matches(t EventType) bool {
	for _, eventType := range s.EventTypes {
		if eventType == t {
			return true
		}
	}
	return false
}

// EventBus delivers published events to matching subscribers from a
// fixed pool of workers
type EventBus struct {
	mu             sync.RWMutex
	subscriptions  map[string]*Subscription
	eventBuffer    chan *Event
	workers        int
	handlerTimeout time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	stats          EventBusStats
	statsMu        sync.RWMutex
}

// EventBusStats tracks event bus statistics
type EventBusStats struct {
	EventsPublished   int64 `json:"events_published"`
	EventsDelivered   int64 `json:"events_delivered"`
	EventsFailed      int64 `json:"events_failed"`
	EventsDropped     int64 `json:"events_dropped"`
	ActiveSubscribers int64 `json:"active_subscribers"`
	EventsInBuffer    int64 `json:"events_in_buffer"`
}

// NewEventBus creates an event bus and starts its workers
func NewEventBus(bufferSize, workers int) *EventBus {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	eb := &EventBus{
		subscriptions:  make(map[string]*Subscription),
		eventBuffer:    make(chan *Event, bufferSize),
		workers:        workers,
		handlerTimeout: 5 * time.Second,
		ctx:            ctx,
		cancel:         cancel,
	}

	for i := 0; i < workers; i++ {
		eb.wg.Add(1)
		go eb.worker(i)
	}

	log.Info().
		Int("buffer_size", bufferSize).
		Int("workers", workers).
		Msg("Event bus started")

	return eb
}

// Publish queues an event without blocking. A full buffer drops it.
func (eb *EventBus) Publish(event *Event) error {
	if eb.ctx.Err() != nil {
		return ErrBusClosed
	}
	select {
	case eb.eventBuffer <- event:
		eb.statsMu.Lock()
		eb.stats.EventsPublished++
		eb.statsMu.Unlock()
		return nil
	default:
		eb.statsMu.Lock()
		eb.stats.EventsDropped++
		eb.statsMu.Unlock()
		log.Warn().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("Event dropped due to full buffer")
		return ErrBufferFull
	}
}

// Subscribe registers handler for the given event types
func (eb *EventBus) Subscribe(eventTypes []EventType, handler EventHandler) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe: nil handler")
	}
	if len(eventTypes) == 0 {
		return nil, fmt.Errorf("subscribe: no event types")
	}

	ctx, cancel := context.WithCancel(eb.ctx)
	sub := &Subscription{
		ID:         "sub_" + uuid.New().String(),
		EventTypes: eventTypes,
		Handler:    handler,
		ctx:        ctx,
		cancel:     cancel,
		active:     true,
	}

	eb.mu.Lock()
	eb.subscriptions[sub.ID] = sub
	eb.mu.Unlock()

	eb.statsMu.Lock()
	eb.stats.ActiveSubscribers++
	eb.statsMu.Unlock()

	log.Debug().
		Str("subscription_id", sub.ID).
		Interface("event_types", eventTypes).
		Msg("New subscription created")

	return sub, nil
}

// Unsubscribe removes a subscription
func (eb *EventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	sub, exists := eb.subscriptions[subscriptionID]
	if !exists {
		eb.mu.Unlock()
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(eb.subscriptions, subscriptionID)
	eb.mu.Unlock()

	sub.mu.Lock()
	sub.active = false
	sub.cancel()
	sub.mu.Unlock()

	eb.statsMu.Lock()
	eb.stats.ActiveSubscribers--
	eb.statsMu.Unlock()

	log.Debug().Str("subscription_id", subscriptionID).Msg("Subscription removed")
	return nil
}

// Close stops the workers; queued events not yet taken are discarded
func (eb *EventBus) Close() {
	eb.cancel()
	eb.wg.Wait()

	eb.mu.Lock()
	for _, sub := range eb.subscriptions {
		sub.cancel()
	}
	eb.mu.Unlock()

	log.Info().Msg("Event bus shut down")
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	eb.statsMu.RLock()
	defer eb.statsMu.RUnlock()

	stats := eb.stats
	stats.EventsInBuffer = int64(len(eb.eventBuffer))
	return stats
}

func (eb *EventBus) worker(workerID int) {
	defer eb.wg.Done()

	log.Debug().Int("worker_id", workerID).Msg("Event bus worker started")

	for {
		select {
		case event := <-eb.eventBuffer:
			eb.deliverEvent(event)
		case <-eb.ctx.Done():
			log.Debug().Int("worker_id", workerID).Msg("Event bus worker stopping")
			return
		}
	}
}

func (eb *EventBus) deliverEvent(event *Event) {
	eb.mu.RLock()
	matching := make([]*Subscription, 0, len(eb.subscriptions))
	for _, sub := range eb.subscriptions {
		if sub.matches(event.Type) {
			matching = append(matching, sub)
		}
	}
	eb.mu.RUnlock()

	for _, sub := range matching {
		eb.deliverToSubscription(event, sub)
	}
}

func (eb *EventBus) deliverToSubscription(event *Event, sub *Subscription) {
	if !sub.isActive() {
		return
	}

	ctx, cancel := context.WithTimeout(sub.ctx, eb.handlerTimeout)
	defer cancel()

	if err := sub.Handler(ctx, event); err != nil {
		eb.statsMu.Lock()
		eb.stats.EventsFailed++
		eb.statsMu.Unlock()
		log.Error().
			Err(err).
			Str("subscription_id", sub.ID).
			Str("event_id", event.ID).
			Msg("Event handler failed")
		return
	}

	eb.statsMu.Lock()
	eb.stats.EventsDelivered++
	eb.statsMu.Unlock()
}
