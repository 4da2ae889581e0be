package models

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/microcosm-collective/pantry/breaker"
	c "github.com/microcosm-collective/pantry/cache"
	e "github.com/microcosm-collective/pantry/errors"
	"github.com/microcosm-collective/pantry/metrics"
)

type fakeCache struct {
	mu          sync.Mutex
	values      map[string][]byte
	unavailable bool
	setErr      error
	gets        int
	sets        int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets++
	if f.unavailable {
		return nil, false, fmt.Errorf("dial: %w", c.ErrUnavailable)
	}
	v, ok := f.values[key]
	if !ok || len(v) == 0 {
		return nil, false, nil
	}
	return v, true, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sets++
	if f.unavailable {
		return c.ErrUnavailable
	}
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

func (f *fakeCache) Ping(context.Context) error { return nil }
func (f *fakeCache) Close() error               { return nil }

func (f *fakeCache) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

type fakeStore struct {
	foods []FoodType
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeStore) FetchAllFoods(ctx context.Context) ([]FoodType, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.foods, nil
}

var appleBanana = []FoodType{
	{ID: 1, Name: "Apple"},
	{ID: 2, Name: "Banana"},
}

func testBreaker() *breaker.Breaker {
	return breaker.New(breaker.Settings{
		Name:                "store",
		ConsecutiveFailures: 3,
		MinCoolDown:         time.Hour,
		MaxCoolDown:         time.Hour,
	})
}

func TestGetAllFoodsHitShortCircuitsStore(t *testing.T) {
	cache := newFakeCache()
	value, err := EncodeFoods(appleBanana)
	require.NoError(t, err)
	cache.values[mcFoodKeys[c.CacheList]] = value

	store := &fakeStore{err: fmt.Errorf("must not be called")}
	m := metrics.New()
	r := NewFoodReader(cache, store, testBreaker(), m)

	foods, status, err := r.GetAllFoods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, appleBanana, foods)
	assert.Equal(t, int32(0), store.calls.Load())
	assert.Equal(t, 0, cache.setCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues(metrics.ResultHit)))
}

func TestGetAllFoodsMissPopulatesOnce(t *testing.T) {
	cache := newFakeCache()
	store := &fakeStore{foods: appleBanana}
	m := metrics.New()
	r := NewFoodReader(cache, store, testBreaker(), m)

	foods, status, err := r.GetAllFoods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, appleBanana, foods)
	assert.Equal(t, int32(1), store.calls.Load())
	assert.Equal(t, 1, cache.setCount())

	// Round trip: what was written decodes to what the store returned
	cached, err := DecodeFoods(cache.values[mcFoodKeys[c.CacheList]])
	require.NoError(t, err)
	assert.Equal(t, appleBanana, cached)

	// The second read is served from the cache
	foods, status, err = r.GetAllFoods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, appleBanana, foods)
	assert.Equal(t, int32(1), store.calls.Load())
	assert.Equal(t, 1, cache.setCount())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues(metrics.ResultMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues(metrics.ResultHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites.WithLabelValues(metrics.ResultOK)))
}

func TestGetAllFoodsEmptyCollection(t *testing.T) {
	cache := newFakeCache()
	store := &fakeStore{foods: []FoodType{}}
	r := NewFoodReader(cache, store, testBreaker(), metrics.New())

	foods, status, err := r.GetAllFoods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, foods)
	assert.Empty(t, foods)

	foods, status, err = r.GetAllFoods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, foods)
	assert.Empty(t, foods)
}

func TestGetAllFoodsCacheDown(t *testing.T) {
	cache := newFakeCache()
	cache.unavailable = true
	store := &fakeStore{foods: appleBanana}
	m := metrics.New()
	r := NewFoodReader(cache, store, testBreaker(), m)

	foods, status, err := r.GetAllFoods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, appleBanana, foods)
	assert.Equal(t, int32(1), store.calls.Load())
	assert.Equal(t, 0, cache.setCount(), "no write-back while the cache is unreachable")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues(metrics.ResultUnavailable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites.WithLabelValues(metrics.ResultSkipped)))
}

func TestGetAllFoodsCorruptEntry(t *testing.T) {
	cache := newFakeCache()
	cache.values[mcFoodKeys[c.CacheList]] = []byte("not a gob stream")
	store := &fakeStore{foods: appleBanana}
	m := metrics.New()
	r := NewFoodReader(cache, store, testBreaker(), m)

	foods, status, err := r.GetAllFoods(context.Background())
	require.Error(t, err)
	assert.Nil(t, foods)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.True(t, stderrors.Is(err, e.ErrCacheDecodeFailure))
	assert.Equal(t, int32(0), store.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues(metrics.ResultCorrupt)))
}

func TestGetAllFoodsStoreFailure(t *testing.T) {
	cache := newFakeCache()
	store := &fakeStore{err: fmt.Errorf("connection reset")}
	cb := testBreaker()
	r := NewFoodReader(cache, store, cb, metrics.New())

	foods, status, err := r.GetAllFoods(context.Background())
	require.Error(t, err)
	assert.Nil(t, foods)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.True(t, stderrors.Is(err, e.ErrStoreFailure))
	assert.Equal(t, 0, cache.setCount())
	assert.Equal(t, uint32(1), cb.Counts().ConsecutiveFailures)
}

func TestGetAllFoodsWriteBackFailureIsNotFatal(t *testing.T) {
	cache := newFakeCache()
	cache.setErr = fmt.Errorf("READONLY You can't write against a read only replica")
	store := &fakeStore{foods: appleBanana}
	m := metrics.New()
	r := NewFoodReader(cache, store, testBreaker(), m)

	foods, status, err := r.GetAllFoods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, appleBanana, foods)
	assert.Equal(t, 1, cache.setCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites.WithLabelValues(metrics.ResultFailed)))
}

func TestGetAllFoodsFailsFastWhenOpen(t *testing.T) {
	cache := newFakeCache()
	store := &fakeStore{err: fmt.Errorf("connection refused")}
	cb := testBreaker()
	m := metrics.New()
	r := NewFoodReader(cache, store, cb, m)

	for i := 0; i < 3; i++ {
		_, status, _ := r.GetAllFoods(context.Background())
		require.Equal(t, http.StatusInternalServerError, status)
	}
	require.Equal(t, breaker.StateOpen, cb.State())
	calls := store.calls.Load()

	const n = 50
	var (
		wg       sync.WaitGroup
		degraded atomic.Int32
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, status, err := r.GetAllFoods(context.Background())
			if status == http.StatusServiceUnavailable && stderrors.Is(err, e.ErrServiceDegraded) {
				degraded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n), degraded.Load())
	assert.Equal(t, calls, store.calls.Load(), "the store is never touched while open")
	assert.Equal(t, float64(n), testutil.ToFloat64(m.StoreRequests.WithLabelValues(metrics.ResultRejected)))
}

func TestGetAllFoodsCacheDownAndOpen(t *testing.T) {
	cache := newFakeCache()
	cache.unavailable = true
	store := &fakeStore{err: fmt.Errorf("connection refused")}
	cb := testBreaker()
	r := NewFoodReader(cache, store, cb, metrics.New())

	for i := 0; i < 3; i++ {
		_, _, _ = r.GetAllFoods(context.Background())
	}
	require.Equal(t, breaker.StateOpen, cb.State())

	_, status, err := r.GetAllFoods(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.True(t, stderrors.Is(err, e.ErrServiceDegraded))
	assert.Equal(t, int32(3), store.calls.Load())
}

func TestGetAllFoodsCacheOutcomesDoNotTrip(t *testing.T) {
	cache := newFakeCache()
	cache.unavailable = true
	store := &fakeStore{foods: appleBanana}
	cb := testBreaker()
	r := NewFoodReader(cache, store, cb, metrics.New())

	for i := 0; i < 10; i++ {
		_, status, err := r.GetAllFoods(context.Background())
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
	}

	assert.Equal(t, breaker.StateClosed, cb.State())
	assert.Equal(t, uint32(0), cb.Counts().Failures)
}

// gatedStore blocks every call until release is closed and fails while
// failing is set
type gatedStore struct {
	failing atomic.Bool
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedStore) FetchAllFoods(ctx context.Context) ([]FoodType, error) {
	g.calls.Add(1)
	if g.failing.Load() {
		return nil, fmt.Errorf("connection refused")
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return appleBanana, nil
}

func TestGetAllFoodsHalfOpenRecovery(t *testing.T) {
	cache := newFakeCache()
	store := &gatedStore{release: make(chan struct{})}
	store.failing.Store(true)
	cb := breaker.New(breaker.Settings{
		Name:                "store",
		ConsecutiveFailures: 1,
		BackOff:             &backoff.ConstantBackOff{Interval: 50 * time.Millisecond},
	})
	m := metrics.New()
	r := NewFoodReader(cache, store, cb, m)

	_, status, err := r.GetAllFoods(context.Background())
	require.Equal(t, http.StatusInternalServerError, status)
	require.True(t, stderrors.Is(err, e.ErrStoreFailure))
	require.Equal(t, breaker.StateOpen, cb.State())

	store.failing.Store(false)
	require.Eventually(t, cb.IsCallPermitted, 5*time.Second, 10*time.Millisecond)

	// The trial call holds the only half-open slot until released
	type result struct {
		foods  []FoodType
		status int
		err    error
	}
	trial := make(chan result, 1)
	go func() {
		foods, status, err := r.GetAllFoods(context.Background())
		trial <- result{foods, status, err}
	}()
	require.Eventually(t, func() bool { return store.calls.Load() == 2 }, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, breaker.StateHalfOpen, cb.State())

	const n = 20
	var (
		wg       sync.WaitGroup
		degraded atomic.Int32
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, status, err := r.GetAllFoods(context.Background())
			if status == http.StatusServiceUnavailable && stderrors.Is(err, e.ErrServiceDegraded) {
				degraded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n), degraded.Load())
	assert.Equal(t, int32(2), store.calls.Load(), "only the trial reaches the store")

	close(store.release)
	res := <-trial
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, appleBanana, res.foods)
	assert.Equal(t, breaker.StateClosed, cb.State())
	assert.Equal(t, 1, cache.setCount())

	foods, status, err := r.GetAllFoods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, appleBanana, foods)
	assert.Equal(t, int32(2), store.calls.Load())
	assert.Equal(t, float64(n), testutil.ToFloat64(m.StoreRequests.WithLabelValues(metrics.ResultRejected)))
}

func TestStoreErrorRejectedIsDegraded(t *testing.T) {
	m := metrics.New()
	r := NewFoodReader(newFakeCache(), &fakeStore{}, testBreaker(), m)
	span := trace.SpanFromContext(context.Background())

	rejected := fmt.Errorf("%w: store is half-open with 1 trials in flight", breaker.ErrRejected)
	status, err := r.storeError(span, rejected)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.True(t, stderrors.Is(err, e.ErrServiceDegraded))
	assert.True(t, stderrors.Is(err, breaker.ErrRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreRequests.WithLabelValues(metrics.ResultRejected)))

	status, err = r.storeError(span, fmt.Errorf("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.True(t, stderrors.Is(err, e.ErrStoreFailure))
	assert.False(t, stderrors.Is(err, e.ErrServiceDegraded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreRequests.WithLabelValues(metrics.ResultFailed)))
}

func TestCacheErrorsAreTyped(t *testing.T) {
	err := bypassCache("fd_all", fmt.Errorf("dial: %w", c.ErrUnavailable))
	assert.True(t, stderrors.Is(err, e.ErrCacheUnavailable))
	assert.True(t, stderrors.Is(err, c.ErrUnavailable))
	assert.Equal(t, http.StatusOK, e.StatusFor(e.KindOf(err)))

	cache := newFakeCache()
	cache.setErr = fmt.Errorf("OOM command not allowed")
	m := metrics.New()
	r := NewFoodReader(cache, &fakeStore{}, testBreaker(), m)

	err = r.populate(context.Background(), "fd_all", appleBanana)
	assert.True(t, stderrors.Is(err, e.ErrCacheWriteFailure))
	assert.False(t, stderrors.Is(err, e.ErrCacheUnavailable))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites.WithLabelValues(metrics.ResultFailed)))

	cache.setErr = nil
	require.NoError(t, r.populate(context.Background(), "fd_all", appleBanana))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites.WithLabelValues(metrics.ResultOK)))
}
