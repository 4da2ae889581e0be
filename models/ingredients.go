package models

import (
	"context"
	"net/http"

	"github.com/golang/glog"

	e "github.com/microcosm-collective/pantry/errors"
	h "github.com/microcosm-collective/pantry/helpers"
)

// IngredientType describes an ingredient
type IngredientType struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	CaloriePerGram int64  `json:"caloriePerGram"`
}

// GetIngredients returns every ingredient ordered by ID
func (s *Store) GetIngredients(ctx context.Context) ([]IngredientType, int, error) {
	ems, err := h.Run(ctx, s.workers, func() ([]IngredientType, error) {
		rows, err := s.db.QueryContext(ctx, `
SELECT id
      ,name
      ,calorie_per_gram
  FROM ingredient
 ORDER BY id ASC`,
		)
		if err != nil {
			glog.Errorf("db.Query() %+v", err)
			return nil, e.New("models.GetIngredients", e.StoreFailure, "database query failed", err)
		}
		defer rows.Close()

		ems := []IngredientType{}
		for rows.Next() {
			m := IngredientType{}
			err = rows.Scan(
				&m.ID,
				&m.Name,
				&m.CaloriePerGram,
			)
			if err != nil {
				glog.Errorf("rows.Scan() %+v", err)
				return nil, e.New("models.GetIngredients", e.StoreFailure, "row parsing error", err)
			}

			ems = append(ems, m)
		}
		err = rows.Err()
		if err != nil {
			glog.Errorf("rows.Err() %+v", err)
			return nil, e.New("models.GetIngredients", e.StoreFailure, "error fetching rows", err)
		}

		return ems, nil
	})
	if err != nil {
		return []IngredientType{}, http.StatusInternalServerError, err
	}

	return ems, http.StatusOK, nil
}
