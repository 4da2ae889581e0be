package models

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/microcosm-collective/pantry/breaker"
	c "github.com/microcosm-collective/pantry/cache"
	e "github.com/microcosm-collective/pantry/errors"
	"github.com/microcosm-collective/pantry/metrics"
	"github.com/microcosm-collective/pantry/tracing"
)

// FoodReader answers "all foods" from the cache when it can and from the
// store when it must. Store calls go through the shared circuit breaker;
// cache outcomes never reach the breaker.
//
// A FoodReader is built once at startup and shared by every request.
type FoodReader struct {
	cache   c.Client
	store   FoodFetcher
	breaker *breaker.Breaker
	metrics *metrics.Metrics
}

// NewFoodReader returns a reader over the given collaborators
func NewFoodReader(
	cache c.Client,
	store FoodFetcher,
	cb *breaker.Breaker,
	m *metrics.Metrics,
) *FoodReader {
	return &FoodReader{
		cache:   cache,
		store:   store,
		breaker: cb,
		metrics: m,
	}
}

// GetAllFoods returns the full food collection.
//
// A cache hit is returned as is. A miss, or a cache that cannot be reached,
// falls back to the store if the breaker permits it. After a successful
// store read the collection is written back to the cache, unless the cache
// was unreachable. Write-back failures are logged and do not affect the
// response.
func (r *FoodReader) GetAllFoods(ctx context.Context) ([]FoodType, int, error) {
	ctx, span := tracing.Tracer().Start(ctx, "FoodReader.GetAllFoods")
	defer span.End()

	mcKey := mcFoodKeys[c.CacheList]
	cacheReachable := true

	value, found, err := r.cache.Get(ctx, mcKey)
	switch {
	case err != nil:
		// Go without the cache, this is not a request failure
		cacheReachable = false
		bypassCache(mcKey, err)
		r.metrics.CacheRequests.WithLabelValues(metrics.ResultUnavailable).Inc()
		span.SetAttributes(attribute.String("pantry.cache", metrics.ResultUnavailable))

	case found:
		foods, err := DecodeFoods(value)
		if err != nil {
			// A corrupt entry is surfaced rather than papered over with
			// a store read
			glog.Errorf("DecodeFoods(%s) %+v", mcKey, err)
			r.metrics.CacheRequests.WithLabelValues(metrics.ResultCorrupt).Inc()
			span.SetStatus(codes.Error, "corrupt cache entry")
			return nil, http.StatusInternalServerError, e.New(
				"models.GetAllFoods",
				e.CacheDecodeFailure,
				"cached food collection could not be decoded",
				err,
			)
		}

		r.metrics.CacheRequests.WithLabelValues(metrics.ResultHit).Inc()
		span.SetAttributes(attribute.String("pantry.cache", metrics.ResultHit))
		return foods, http.StatusOK, nil

	default:
		r.metrics.CacheRequests.WithLabelValues(metrics.ResultMiss).Inc()
		span.SetAttributes(attribute.String("pantry.cache", metrics.ResultMiss))
	}

	// Fail fast before paying for anything on the store path
	if !r.breaker.IsCallPermitted() {
		return nil, http.StatusServiceUnavailable, r.degraded(span, nil)
	}

	foods, err := breaker.Execute(r.breaker, func() ([]FoodType, error) {
		return r.store.FetchAllFoods(ctx)
	})
	if err != nil {
		status, storeErr := r.storeError(span, err)
		return nil, status, storeErr
	}
	r.metrics.StoreRequests.WithLabelValues(metrics.ResultOK).Inc()

	if cacheReachable {
		_ = r.populate(context.WithoutCancel(ctx), mcKey, foods)
	} else {
		r.metrics.CacheWrites.WithLabelValues(metrics.ResultSkipped).Inc()
	}

	return foods, http.StatusOK, nil
}

// storeError maps an error from the guarded store call to a response
func (r *FoodReader) storeError(span trace.Span, err error) (int, error) {
	if errors.Is(err, breaker.ErrRejected) {
		// Another request took the last half-open trial between the
		// permission check and the call
		return http.StatusServiceUnavailable, r.degraded(span, err)
	}

	glog.Errorf("store.FetchAllFoods() %+v", err)
	r.metrics.StoreRequests.WithLabelValues(metrics.ResultFailed).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "store failure")
	return http.StatusInternalServerError, e.New(
		"models.GetAllFoods",
		e.StoreFailure,
		"food store query failed",
		err,
	)
}

func (r *FoodReader) degraded(span trace.Span, cause error) error {
	glog.Warningf("breaker %s is %s, not calling the store", r.breaker.Name(), r.breaker.State())
	r.metrics.StoreRequests.WithLabelValues(metrics.ResultRejected).Inc()
	span.SetStatus(codes.Error, "service degraded")

	return e.New(
		"models.GetAllFoods",
		e.ServiceDegraded,
		"food store is temporarily unavailable",
		cause,
	)
}

// bypassCache logs a cache read that could not be made and returns it as a
// CacheUnavailable error
func bypassCache(mcKey string, cause error) error {
	err := e.New("models.GetAllFoods", e.CacheUnavailable, "bypassing cache", cause)
	glog.Warningf("cache.Get(%s) %+v", mcKey, err)
	return err
}

// populate writes foods back to the cache. Concurrent writers race and the
// last one wins, every value written is a complete collection. The error is
// only logged by the caller's path, it never changes the response.
func (r *FoodReader) populate(ctx context.Context, mcKey string, foods []FoodType) error {
	value, err := EncodeFoods(foods)
	if err == nil {
		err = r.cache.Set(ctx, mcKey, value)
	}
	if err != nil {
		err = e.New("models.populate", e.CacheWriteFailure, "write-back failed", err)
		glog.Warningf("cache.Set(%s) %+v", mcKey, err)
		r.metrics.CacheWrites.WithLabelValues(metrics.ResultFailed).Inc()
		return err
	}

	r.metrics.CacheWrites.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}
