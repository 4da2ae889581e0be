package models

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	h "github.com/microcosm-collective/pantry/helpers"
	"github.com/microcosm-collective/pantry/tracing"
)

// FoodType describes a food
type FoodType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FoodFetcher loads the full food collection from the store
type FoodFetcher interface {
	FetchAllFoods(ctx context.Context) ([]FoodType, error)
}

// FetchAllFoods returns every food ordered by ID
func (s *Store) FetchAllFoods(ctx context.Context) ([]FoodType, error) {
	ctx, span := tracing.Tracer().Start(ctx, "Store.FetchAllFoods")
	defer span.End()

	foods, err := h.Run(ctx, s.workers, func() ([]FoodType, error) {
		rows, err := s.db.QueryContext(ctx, `
SELECT id
      ,name
  FROM food
 ORDER BY id ASC`,
		)
		if err != nil {
			glog.Errorf("db.Query() %+v", err)
			return nil, fmt.Errorf("database query failed: %w", err)
		}
		defer rows.Close()

		ems := []FoodType{}
		for rows.Next() {
			m := FoodType{}
			err = rows.Scan(
				&m.ID,
				&m.Name,
			)
			if err != nil {
				glog.Errorf("rows.Scan() %+v", err)
				return nil, fmt.Errorf("row parsing error: %w", err)
			}

			ems = append(ems, m)
		}
		err = rows.Err()
		if err != nil {
			glog.Errorf("rows.Err() %+v", err)
			return nil, fmt.Errorf("error fetching rows: %w", err)
		}

		return ems, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch all foods")
		return nil, err
	}

	span.SetAttributes(attribute.Int("pantry.foods", len(foods)))

	return foods, nil
}
