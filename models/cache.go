package models

import (
	c "github.com/microcosm-collective/pantry/cache"
)

// This file contains the cache keys and the encoding of model objects held
// in the cache. Anything not specific to models goes in the cache package.

var (
	mcFoodKeys = map[int]string{
		c.CacheList: "fd_all",
	}
)

// EncodeFoods serialises a food collection for the cache
func EncodeFoods(foods []FoodType) ([]byte, error) {
	if foods == nil {
		foods = []FoodType{}
	}
	return c.Encode(foods)
}

// DecodeFoods reads back a collection written by EncodeFoods. An empty
// collection decodes to an empty, non-nil slice.
func DecodeFoods(value []byte) ([]FoodType, error) {
	var foods []FoodType
	err := c.Decode(value, &foods)
	if err != nil {
		return nil, err
	}

	if foods == nil {
		foods = []FoodType{}
	}

	return foods, nil
}
