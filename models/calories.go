package models

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/golang/glog"

	e "github.com/microcosm-collective/pantry/errors"
	h "github.com/microcosm-collective/pantry/helpers"
)

// CalorieType is the calorie count of one serving of a food
type CalorieType struct {
	FoodID   int64 `json:"foodId"`
	Calories int64 `json:"calories"`
}

// GetCalories sums grams * calories per gram over the ingredients of a food.
// A food with no ingredients has zero calories, a food that does not exist
// is a 404.
func (s *Store) GetCalories(ctx context.Context, foodID int64) (CalorieType, int, error) {
	if foodID < 1 {
		return CalorieType{}, http.StatusBadRequest, e.NewWithCode(
			"models.GetCalories",
			e.InvalidRequest,
			e.OutOfRange,
			fmt.Sprintf("food ID (%d) must be a positive number", foodID),
			nil,
		)
	}

	var status int
	m, err := h.Run(ctx, s.workers, func() (CalorieType, error) {
		var m CalorieType
		err := s.db.QueryRowContext(ctx, s.query(`
SELECT f.id
      ,COALESCE(SUM(r.grams * i.calorie_per_gram), 0)
  FROM food f
       LEFT JOIN relationship r ON r.food_id = f.id
       LEFT JOIN ingredient i ON i.id = r.ingredient_id
 WHERE f.id = $1
 GROUP BY f.id`),
			foodID,
		).Scan(
			&m.FoodID,
			&m.Calories,
		)
		if err == sql.ErrNoRows {
			status = http.StatusNotFound
			return m, e.New(
				"models.GetCalories",
				e.NotFound,
				fmt.Sprintf("Resource with food ID %d not found", foodID),
				err,
			)

		} else if err != nil {
			glog.Errorf("db.QueryRow(%d) %+v", foodID, err)
			status = http.StatusInternalServerError
			return m, e.New("models.GetCalories", e.StoreFailure, "Database query failed", err)
		}

		return m, nil
	})
	if err != nil {
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return CalorieType{}, status, err
	}

	return m, http.StatusOK, nil
}
