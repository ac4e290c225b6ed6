package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/domain/shared"
)

type recordingHandler struct {
	types []string
	err   error
	panic bool

	mu   sync.Mutex
	seen []string
}

func (h *recordingHandler) Handle(_ context.Context, e shared.DomainEvent) error {
	h.mu.Lock()
	h.seen = append(h.seen, e.EventType())
	h.mu.Unlock()
	if h.panic {
		panic("boom")
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func testEvent(eventType string) shared.DomainEvent {
	e := shared.NewBaseDomainEvent(eventType, catalog.AggregateTypeProduct, uuid.New())
	return &e
}

func TestInMemoryEventBus_InlineDispatch(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	backInStock := &recordingHandler{types: []string{catalog.EventTypeProductBackInStock}}
	all := &recordingHandler{}
	bus.Subscribe(backInStock)
	bus.Subscribe(all)

	err := bus.Publish(context.Background(),
		testEvent(catalog.EventTypeProductCreated),
		testEvent(catalog.EventTypeProductBackInStock),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{catalog.EventTypeProductBackInStock}, backInStock.received())
	assert.Equal(t, []string{catalog.EventTypeProductCreated, catalog.EventTypeProductBackInStock}, all.received())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{types: []string{catalog.EventTypeProductBackInStock}}
	bus.Subscribe(h, catalog.EventTypeProductUnlinked)

	require.NoError(t, bus.Publish(context.Background(),
		testEvent(catalog.EventTypeProductBackInStock),
		testEvent(catalog.EventTypeProductUnlinked),
	))
	assert.Equal(t, []string{catalog.EventTypeProductUnlinked}, h.received())
}

func TestInMemoryEventBus_FailingHandlersAreIsolated(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	failing := &recordingHandler{err: errors.New("broker down")}
	panicking := &recordingHandler{panic: true}
	healthy := &recordingHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), testEvent(catalog.EventTypeProductCreated))
	assert.NoError(t, err)
	assert.Len(t, failing.received(), 1)
	assert.Len(t, panicking.received(), 1)
	assert.Len(t, healthy.received(), 1)
}

func TestInMemoryEventBus_AsyncDrainsOnStop(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t), WithQueueSize(64))
	h := &recordingHandler{}
	bus.Subscribe(h)
	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Start(context.Background()), "second start is a no-op")

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(ctx, testEvent(catalog.EventTypeProductPriceChanged)))
	}
	cancel()

	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, bus.Stop(stopCtx))
	assert.Len(t, h.received(), 20)

	require.NoError(t, bus.Publish(context.Background(), testEvent(catalog.EventTypeProductCreated)))
	assert.Len(t, h.received(), 21, "stopped bus dispatches inline")
	assert.NoError(t, bus.Stop(context.Background()))
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	typed := &recordingHandler{types: []string{catalog.EventTypeProductCreated}}
	all := &recordingHandler{}
	bus.Subscribe(typed)
	bus.Subscribe(all)

	bus.Unsubscribe(typed)
	bus.Unsubscribe(all)
	require.NoError(t, bus.Publish(context.Background(), testEvent(catalog.EventTypeProductCreated)))

	assert.Empty(t, typed.received())
	assert.Empty(t, all.received())
	assert.Empty(t, bus.registry.Handlers(catalog.EventTypeProductCreated))
}
