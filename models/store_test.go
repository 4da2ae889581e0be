package models

import (
	"context"
	stderrors "errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	e "github.com/microcosm-collective/pantry/errors"
	h "github.com/microcosm-collective/pantry/helpers"
	"github.com/microcosm-collective/pantry/migrations"
)

// newTestStore returns a store over a migrated sqlite database holding
// Apple (id 1) made of apple flesh and sugar, Banana (id 2) made of banana
// flesh, and Water (id 3) with no ingredients.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	c := h.DBConfig{
		Driver:  h.DriverSQLite,
		Path:    filepath.Join(t.TempDir(), "pantry.db"),
		MaxOpen: 4,
		MinIdle: 1,
	}
	db, err := h.OpenDB(c)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, migrations.Apply(ctx, db))

	for _, stmt := range []string{
		`INSERT INTO food (id, name) VALUES (2, 'Banana'), (1, 'Apple'), (3, 'Water')`,
		`INSERT INTO ingredient (id, name, calorie_per_gram) VALUES (1, 'apple flesh', 1), (2, 'sugar', 4), (3, 'banana flesh', 2)`,
		`INSERT INTO relationship (food_id, ingredient_id, grams) VALUES (1, 1, 150), (1, 2, 10), (2, 3, 120)`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	return NewStore(db, c.Driver, h.NewWorkers(2))
}

func TestFetchAllFoodsOrderedByID(t *testing.T) {
	s := newTestStore(t)

	foods, err := s.FetchAllFoods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []FoodType{
		{ID: 1, Name: "Apple"},
		{ID: 2, Name: "Banana"},
		{ID: 3, Name: "Water"},
	}, foods)
}

func TestFetchAllFoodsEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.DB().Exec(`DELETE FROM relationship`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`DELETE FROM food`)
	require.NoError(t, err)

	foods, err := s.FetchAllFoods(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, foods)
	assert.Empty(t, foods)
}

func TestFetchAllFoodsClosedDB(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.DB().Close())

	_, err := s.FetchAllFoods(context.Background())
	assert.Error(t, err)
}

func TestGetIngredients(t *testing.T) {
	s := newTestStore(t)

	ems, status, err := s.GetIngredients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, ems, 3)
	assert.Equal(t, IngredientType{ID: 2, Name: "sugar", CaloriePerGram: 4}, ems[1])
}

func TestGetCalories(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name     string
		foodID   int64
		status   int
		calories int64
		err      error
		code     e.ErrCode
	}{
		{"several ingredients", 1, http.StatusOK, 150*1 + 10*4, nil, 0},
		{"one ingredient", 2, http.StatusOK, 120 * 2, nil, 0},
		{"no ingredients", 3, http.StatusOK, 0, nil, 0},
		{"unknown food", 99, http.StatusNotFound, 0, e.ErrNotFound, e.ItemNotFound},
		{"zero id", 0, http.StatusBadRequest, 0, e.ErrInvalidRequest, e.OutOfRange},
		{"negative id", -4, http.StatusBadRequest, 0, e.ErrInvalidRequest, e.OutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, status, err := s.GetCalories(context.Background(), tt.foodID)
			assert.Equal(t, tt.status, status)
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, stderrors.Is(err, tt.err), "%v", err)

				var pe *e.PantryError
				require.True(t, stderrors.As(err, &pe))
				assert.Equal(t, tt.code, pe.ErrorCode)
				assert.Equal(t, tt.status, pe.HTTPStatus())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.foodID, m.FoodID)
			assert.Equal(t, tt.calories, m.Calories)
		})
	}
}

func TestCatalogueStoreFailure(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.db.Close())

	_, status, err := s.GetCalories(context.Background(), 1)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.True(t, stderrors.Is(err, e.ErrStoreFailure), "%v", err)

	_, status, err = s.GetIngredients(context.Background())
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.True(t, stderrors.Is(err, e.ErrStoreFailure), "%v", err)
}

func TestStoreRespectsCancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FetchAllFoods(ctx)
	assert.Error(t, err)
}
