package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/florist-bot/internal/domain/product"
)

type mockSource struct {
	mu       sync.Mutex
	catalogs []*product.Catalog
	err      error
	calls    atomic.Int32
	block    chan struct{}
}

func (m *mockSource) Fetch(ctx context.Context) (*product.Catalog, error) {
	m.calls.Add(1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c := m.catalogs[0]
	if len(m.catalogs) > 1 {
		m.catalogs = m.catalogs[1:]
	}
	return c, nil
}

func (m *mockSource) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newSnapshot(t *testing.T, ids ...string) *product.Catalog {
	t.Helper()
	products := make([]product.Product, len(ids))
	for i, id := range ids {
		products[i] = product.Product{ID: id, Tags: product.NewTags("rose")}
	}
	c, err := product.NewCatalog(products, time.Now())
	require.NoError(t, err)
	return c
}

func newTestRefresher(t *testing.T, src Source, interval time.Duration) (*Refresher, *Store) {
	t.Helper()
	store := NewStore()
	r, err := NewRefresher(src, store, RefresherConfig{Interval: interval},
		zaptest.NewLogger(t), metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)
	return r, store
}

func TestRefresher_Refresh(t *testing.T) {
	first := newSnapshot(t, "1")
	second := newSnapshot(t, "1", "2")
	src := &mockSource{catalogs: []*product.Catalog{first, second}}
	r, store := newTestRefresher(t, src, time.Hour)

	assert.Nil(t, r.Current())

	got, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Same(t, first, store.Load())

	got, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Same(t, second, r.Current())
}

func TestRefresher_FailureKeepsSnapshot(t *testing.T) {
	first := newSnapshot(t, "1")
	src := &mockSource{catalogs: []*product.Catalog{first}}
	r, store := newTestRefresher(t, src, time.Hour)

	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	src.setErr(product.Unavailable("test", errors.New("boom")))
	_, err = r.Refresh(context.Background())
	require.ErrorIs(t, err, product.ErrCatalogUnavailable)
	assert.Same(t, first, store.Load())
}

func TestRefresher_Ensure(t *testing.T) {
	first := newSnapshot(t, "1")
	src := &mockSource{catalogs: []*product.Catalog{first, newSnapshot(t, "2")}}
	r, _ := newTestRefresher(t, src, time.Hour)

	got, err := r.Ensure(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, got)

	got, err = r.Ensure(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRefresher_EnsureUnavailable(t *testing.T) {
	src := &mockSource{err: product.Unavailable("test", errors.New("down"))}
	r, _ := newTestRefresher(t, src, time.Hour)

	_, err := r.Ensure(context.Background())
	require.ErrorIs(t, err, product.ErrCatalogUnavailable)
}

func TestRefresher_ConcurrentRefreshSharesFetch(t *testing.T) {
	src := &mockSource{catalogs: []*product.Catalog{newSnapshot(t, "1")}, block: make(chan struct{})}
	r, _ := newTestRefresher(t, src, time.Hour)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*product.Catalog, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := r.Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = c
		}()
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the remaining callers time to join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(src.block)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
}

func TestRefresher_EnsureSurvivesCancelledCaller(t *testing.T) {
	want := newSnapshot(t, "1")
	src := &mockSource{catalogs: []*product.Catalog{want}, block: make(chan struct{})}
	r, store := newTestRefresher(t, src, time.Hour)

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Ensure(first)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		c   *product.Catalog
		err error
	}
	second := make(chan result, 1)
	go func() {
		c, err := r.Ensure(context.Background())
		second <- result{c, err}
	}()
	// Let the second caller join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(src.block)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Same(t, want, res.c)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Same(t, want, store.Load())
}

func TestRefresher_FetchTimeout(t *testing.T) {
	src := &mockSource{catalogs: []*product.Catalog{newSnapshot(t, "1")}, block: make(chan struct{})}
	store := NewStore()
	r, err := NewRefresher(src, store, RefresherConfig{Interval: time.Hour, FetchTimeout: 10 * time.Millisecond},
		zaptest.NewLogger(t), metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)

	_, err = r.Ensure(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, store.Load())
}

func TestRefresher_Run(t *testing.T) {
	src := &mockSource{catalogs: []*product.Catalog{newSnapshot(t, "1"), newSnapshot(t, "1", "2")}}
	r, store := newTestRefresher(t, src, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Load().Len() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRefresher_RunSurvivesFailures(t *testing.T) {
	src := &mockSource{err: errors.New("down")}
	r, store := newTestRefresher(t, src, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, time.Second, time.Millisecond)
	assert.Nil(t, store.Load())

	snapshot := newSnapshot(t, "1")
	src.mu.Lock()
	src.catalogs = []*product.Catalog{snapshot}
	src.err = nil
	src.mu.Unlock()

	require.Eventually(t, func() bool { return store.Load() != nil }, time.Second, time.Millisecond)

	cancel()
	<-done
}
