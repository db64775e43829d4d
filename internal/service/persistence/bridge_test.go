package persistence

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/minishop/internal/cart"
	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

type stubKV struct {
	mu     sync.Mutex
	values map[string]string
	sets   []string
	getErr error
	setErr error
}

func newStubKV() *stubKV {
	return &stubKV{values: make(map[string]string)}
}

func (s *stubKV) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	value, ok := s.values[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return value, nil
}

func (s *stubKV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = append(s.sets, value)
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

func (s *stubKV) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets)
}

func (s *stubKV) lastSet() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sets) == 0 {
		return ""
	}
	return s.sets[len(s.sets)-1]
}

type stubRecorder struct {
	mu    sync.Mutex
	saves map[string]int
	loads map[string]int
}

func newStubRecorder() *stubRecorder {
	return &stubRecorder{saves: make(map[string]int), loads: make(map[string]int)}
}

func (r *stubRecorder) RecordSave(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves[result]++
}

func (r *stubRecorder) RecordSaveDuration(time.Duration) {}

func (r *stubRecorder) RecordLoad(outcome string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads[outcome]++
}

func (r *stubRecorder) saveCount(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[result]
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func product(id int64, price float64) domain.Product {
	return domain.Product{ID: id, Title: "product", Price: price}
}

func newTestBridge(t *testing.T, store *cart.Store, kv domain.KeyValueStore, opts ...Option) *Bridge {
	t.Helper()
	opts = append([]Option{WithLogger(testLogger()), WithSaveDebounce(20 * time.Millisecond)}, opts...)
	bridge := NewBridge(store, kv, opts...)
	t.Cleanup(bridge.Close)
	return bridge
}

func TestBridge_DebounceCollapsesBurstIntoSingleWrite(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	bridge := newTestBridge(t, store, kv)
	require.Equal(t, LoadOutcomeEmpty, bridge.Load(context.Background()).Outcome)

	for i := 0; i < 5; i++ {
		store.AddToCart(product(1, 10))
	}
	store.AddToCart(product(2, 3))

	require.Eventually(t, func() bool { return kv.setCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return kv.setCount() > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	decoded := DecodeSnapshot(kv.lastSet())
	require.Len(t, decoded.Items, 2)
	require.Equal(t, 5, decoded.Items[0].Quantity)
	require.Equal(t, 1, decoded.Items[1].Quantity)
}

func TestBridge_ChangesBeforeLoadAreDiscarded(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	recorder := newStubRecorder()
	bridge := newTestBridge(t, store, kv, WithRecorder(recorder))

	store.AddToCart(product(1, 10))

	require.False(t, bridge.Loaded())
	require.Never(t, func() bool { return kv.setCount() > 0 }, 80*time.Millisecond, 10*time.Millisecond)
	require.Equal(t, 1, recorder.saveCount(SaveResultDiscarded))
}

func TestBridge_LoadRestoresValidEntriesOnly(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	kv.values[CartKey] = `[{"id":1,"title":"A","price":10,"quantity":2},{"id":2,"title":"B","quantity":1}]`
	bridge := newTestBridge(t, store, kv)

	result := bridge.Load(context.Background())

	require.Equal(t, LoadOutcomeRestored, result.Outcome)
	require.Equal(t, 1, result.Restored)
	require.Equal(t, 1, result.Dropped)
	items := store.Items()
	require.Len(t, items, 1)
	require.Equal(t, int64(1), items[0].ID)
	require.Equal(t, 2, items[0].Quantity)
	require.True(t, bridge.Loaded())

	// гидрация не порождает записи
	require.Never(t, func() bool { return kv.setCount() > 0 }, 80*time.Millisecond, 10*time.Millisecond)
}

func TestBridge_MalformedSnapshotHydratesEmptyCart(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	kv.values[CartKey] = `{"id":1}`
	bridge := newTestBridge(t, store, kv)

	result := bridge.Load(context.Background())

	require.Equal(t, LoadOutcomeMalformed, result.Outcome)
	require.Empty(t, store.Items())
	require.Equal(t, uint64(1), store.Version())
	require.True(t, bridge.Loaded())
}

func TestBridge_AbsentKeyLeavesLedgerUntouched(t *testing.T) {
	store := cart.NewStore()
	bridge := newTestBridge(t, store, newStubKV())

	result := bridge.Load(context.Background())

	require.Equal(t, LoadOutcomeEmpty, result.Outcome)
	require.Zero(t, store.Version())
	require.True(t, bridge.Loaded())
}

func TestBridge_ReadErrorStillOpensGate(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	kv.getErr = errors.New("disk unavailable")
	bridge := newTestBridge(t, store, kv)

	result := bridge.Load(context.Background())
	require.Equal(t, LoadOutcomeError, result.Outcome)
	require.True(t, bridge.Loaded())

	kv.mu.Lock()
	kv.getErr = nil
	kv.mu.Unlock()

	store.AddToCart(product(1, 1))
	require.Eventually(t, func() bool { return kv.setCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBridge_LoadRunsOnce(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	kv.values[CartKey] = `[{"id":1,"title":"A","price":10,"quantity":2}]`
	bridge := newTestBridge(t, store, kv)

	first := bridge.Load(context.Background())
	second := bridge.Load(context.Background())

	require.Equal(t, 1, first.Restored)
	require.Equal(t, LoadResult{}, second)
	require.Equal(t, uint64(1), store.Version())
}

func TestBridge_WriteFailureIsSwallowed(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	kv.setErr = errors.New("quota exceeded")
	recorder := newStubRecorder()
	bridge := newTestBridge(t, store, kv, WithRecorder(recorder))
	bridge.Load(context.Background())

	store.AddToCart(product(1, 1))

	require.Eventually(t, func() bool { return recorder.saveCount(SaveResultFailed) == 1 }, time.Second, 5*time.Millisecond)
	require.Len(t, store.Items(), 1)

	// следующая мутация снова планирует запись
	store.IncreaseQuantity(1)
	require.Eventually(t, func() bool { return kv.setCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestBridge_FlushWritesPendingStateImmediately(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	bridge := newTestBridge(t, store, kv, WithSaveDebounce(time.Hour))
	bridge.Load(context.Background())

	store.AddToCart(product(3, 2.5))
	store.AddToCart(product(3, 2.5))
	bridge.Flush(context.Background())

	require.Equal(t, 1, kv.setCount())
	decoded := DecodeSnapshot(kv.lastSet())
	require.Len(t, decoded.Items, 1)
	require.Equal(t, 2, decoded.Items[0].Quantity)

	// повторный Flush без изменений ничего не пишет
	bridge.Flush(context.Background())
	require.Equal(t, 1, kv.setCount())
}

func TestBridge_CloseCancelsPendingWrite(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	bridge := NewBridge(store, kv, WithLogger(testLogger()), WithSaveDebounce(30*time.Millisecond))
	bridge.Load(context.Background())

	store.AddToCart(product(1, 1))
	bridge.Close()
	store.AddToCart(product(2, 1))

	require.Never(t, func() bool { return kv.setCount() > 0 }, 120*time.Millisecond, 10*time.Millisecond)

	// повторный Close безопасен
	bridge.Close()
}

func TestBridge_LoadTimeoutOpensGate(t *testing.T) {
	store := cart.NewStore()
	kv := &blockingKV{}
	bridge := newTestBridge(t, store, kv, WithLoadTimeout(20*time.Millisecond))

	result := bridge.Load(context.Background())

	require.Equal(t, LoadOutcomeError, result.Outcome)
	require.True(t, bridge.Loaded())
}

type blockingKV struct{}

func (blockingKV) Get(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingKV) Set(context.Context, string, string) error { return nil }

func TestBridge_RestoredCartIsPersistedAfterNextChange(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	kv.values[CartKey] = `[{"id":1,"title":"A","price":10,"quantity":2,"brand":"Essence"}]`
	bridge := newTestBridge(t, store, kv)
	bridge.Load(context.Background())

	store.DecreaseQuantity(1)

	require.Eventually(t, func() bool { return kv.setCount() == 1 }, time.Second, 5*time.Millisecond)
	require.JSONEq(t,
		`[{"id":1,"title":"A","description":"","price":10,"thumbnail":"","images":null,"quantity":1,"brand":"Essence"}]`,
		kv.lastSet())
}

func TestBridge_LoadNeverHydratesNonPositiveQuantity(t *testing.T) {
	store := cart.NewStore()
	kv := newStubKV()
	kv.values[CartKey] = `[{"id":1,"title":"A","price":10,"quantity":2,"Quantity":0},{"id":2,"title":"B","price":3,"quantity":1}]`
	bridge := newTestBridge(t, store, kv)

	result := bridge.Load(context.Background())

	require.Equal(t, LoadOutcomeRestored, result.Outcome)
	require.Equal(t, 1, result.Restored)
	require.Equal(t, 1, result.Dropped)
	items := store.Items()
	require.Len(t, items, 1)
	require.Equal(t, int64(2), items[0].ID)
	require.Equal(t, 1, items[0].Quantity)
}
