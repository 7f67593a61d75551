package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusBasicPubSub(t *testing.T) {
	eventBus := NewEventBus(100, 2)
	defer eventBus.Close()

	received := make(chan *Event, 1)
	handler := func(ctx context.Context, event *Event) error {
		received <- event
		return nil
	}

	sub, err := eventBus.Subscribe([]EventType{EventDocumentExtracted}, handler)
	require.NoError(t, err)
	require.NotNil(t, sub)

	ext := &document.Extraction{ID: "ext-001", DocumentType: "aging_report"}
	require.NoError(t, eventBus.Publish(NewEvent(EventDocumentExtracted, ext).With("engine", "tesseract")))

	select {
	case event := <-received:
		assert.Equal(t, EventDocumentExtracted, event.Type)
		assert.Equal(t, "ext-001", event.Extraction.ID)
		assert.Equal(t, "tesseract", event.Metadata["engine"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	assert.Eventually(t, func() bool {
		return eventBus.GetStats().EventsDelivered == 1
	}, time.Second, 10*time.Millisecond)

	stats := eventBus.GetStats()
	assert.Equal(t, int64(1), stats.EventsPublished)
	assert.Equal(t, int64(1), stats.ActiveSubscribers)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	eventBus := NewEventBus(100, 2)
	defer eventBus.Close()

	var first, second int32
	_, err := eventBus.Subscribe([]EventType{EventExtractionFailed}, func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&first, 1)
		return nil
	})
	require.NoError(t, err)
	_, err = eventBus.Subscribe([]EventType{EventExtractionFailed}, func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&second, 1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, eventBus.Publish(NewEvent(EventExtractionFailed, nil).WithError(errors.New("all engines failed"))))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&first) == 1 && atomic.LoadInt32(&second) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), eventBus.GetStats().ActiveSubscribers)
}

func TestEventBusEventFiltering(t *testing.T) {
	eventBus := NewEventBus(100, 1)
	defer eventBus.Close()

	var extracted, resets int32
	_, err := eventBus.Subscribe([]EventType{EventDocumentExtracted}, func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&extracted, 1)
		return nil
	})
	require.NoError(t, err)
	_, err = eventBus.Subscribe([]EventType{EventMemoryReset}, func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&resets, 1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, eventBus.Publish(NewEvent(EventDocumentExtracted, nil)))
	require.NoError(t, eventBus.Publish(NewEvent(EventDocumentExtracted, nil)))
	require.NoError(t, eventBus.Publish(NewEvent(EventMemoryReset, nil)))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&extracted) == 2 && atomic.LoadInt32(&resets) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBusHandlerFailure(t *testing.T) {
	eventBus := NewEventBus(10, 1)
	defer eventBus.Close()

	_, err := eventBus.Subscribe([]EventType{EventBatchCompleted}, func(ctx context.Context, event *Event) error {
		return errors.New("sink unavailable")
	})
	require.NoError(t, err)
	require.NoError(t, eventBus.Publish(NewEvent(EventBatchCompleted, nil)))

	assert.Eventually(t, func() bool {
		return eventBus.GetStats().EventsFailed == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBusUnsubscribe(t *testing.T) {
	eventBus := NewEventBus(10, 1)
	defer eventBus.Close()

	sub, err := eventBus.Subscribe([]EventType{EventEngineFallback}, func(ctx context.Context, event *Event) error {
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, eventBus.Unsubscribe(sub.ID))
	assert.Equal(t, int64(0), eventBus.GetStats().ActiveSubscribers)
	assert.Error(t, eventBus.Unsubscribe(sub.ID))
}

func TestEventBusSubscribeValidation(t *testing.T) {
	eventBus := NewEventBus(10, 1)
	defer eventBus.Close()

	_, err := eventBus.Subscribe(nil, func(ctx context.Context, event *Event) error { return nil })
	assert.Error(t, err)
	_, err = eventBus.Subscribe([]EventType{EventMemoryReset}, nil)
	assert.Error(t, err)
}

func TestEventBusFullBufferAndClose(t *testing.T) {
	eventBus := NewEventBus(1, 1)

	block := make(chan struct{})
	_, err := eventBus.Subscribe([]EventType{EventDocumentExtracted}, func(ctx context.Context, event *Event) error {
		<-block
		return nil
	})
	require.NoError(t, err)

	// the worker takes the first event and blocks on it; the second fills
	// the buffer, so a third eventually has nowhere to go
	require.NoError(t, eventBus.Publish(NewEvent(EventDocumentExtracted, nil)))
	var dropped bool
	for i := 0; i < 10 && !dropped; i++ {
		dropped = errors.Is(eventBus.Publish(NewEvent(EventDocumentExtracted, nil)), ErrBufferFull)
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, dropped)
	assert.GreaterOrEqual(t, eventBus.GetStats().EventsDropped, int64(1))

	close(block)
	eventBus.Close()
	assert.ErrorIs(t, eventBus.Publish(NewEvent(EventDocumentExtracted, nil)), ErrBusClosed)
}
