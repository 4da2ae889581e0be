// Package controller holds the web handlers of the API.
//
// Handlers are methods on Handlers, which is built once at startup with the
// shared read path, store, breaker and cache. Each handler answers OPTIONS
// with the methods it allows, GET with its data, and anything else with 405.
package controller

import (
	"context"
	"net/http"

	"github.com/microcosm-collective/pantry/breaker"
	c "github.com/microcosm-collective/pantry/cache"
	"github.com/microcosm-collective/pantry/metrics"
	"github.com/microcosm-collective/pantry/models"
)

// FoodsGetter reads the food collection through the cache
type FoodsGetter interface {
	GetAllFoods(ctx context.Context) ([]models.FoodType, int, error)
}

// Catalogue answers the queries that go straight to the store
type Catalogue interface {
	GetIngredients(ctx context.Context) ([]models.IngredientType, int, error)
	GetCalories(ctx context.Context, foodID int64) (models.CalorieType, int, error)
}

// Pinger checks a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers holds what the web handlers need to serve a request
type Handlers struct {
	Foods     FoodsGetter
	Catalogue Catalogue
	Breaker   *breaker.Breaker
	Cache     c.Client
	DB        Pinger
	Metrics   *metrics.Metrics
}

// HandlerFunc is the signature of every web handler
type HandlerFunc func(http.ResponseWriter, *http.Request)
