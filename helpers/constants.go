package helpers

import (
	"errors"
)

// Item types served by the API
const (
	ItemTypeCalorie    string = "calorie"
	ItemTypeFood       string = "food"
	ItemTypeIngredient string = "ingredient"
	ItemTypeStatus     string = "status"
	ItemTypeVersion    string = "version"
)

// ItemTypes is the lookup of item type to its numeric identifier
var ItemTypes = map[string]int64{
	ItemTypeFood:       1,
	ItemTypeIngredient: 2,
	ItemTypeCalorie:    3,
	ItemTypeStatus:     4,
	ItemTypeVersion:    5,
}

// API paths for each item type
const (
	APITypeCalorie    string = "/api/v1/calories"
	APITypeFood       string = "/api/v1/foods"
	APITypeIngredient string = "/api/v1/ingredients"
	APITypeStatus     string = "/api/v1/status"
	APITypeVersion    string = "/api/v1/version"
)

// ItemTypesToAPIItem maps an item type to the collection path for it
var ItemTypesToAPIItem = map[string]string{
	ItemTypeCalorie:    APITypeCalorie,
	ItemTypeFood:       APITypeFood,
	ItemTypeIngredient: APITypeIngredient,
	ItemTypeStatus:     APITypeStatus,
	ItemTypeVersion:    APITypeVersion,
}

// GetItemTypeFromInt returns the item type with the given identifier
func GetItemTypeFromInt(value int64) (string, error) {
	return GetMapStringFromInt(ItemTypes, value)
}

// GetMapStringFromInt returns the key that holds value
func GetMapStringFromInt(theMap map[string]int64, value int64) (string, error) {
	for k, v := range theMap {
		if v == value {
			return k, nil
		}
	}
	return "", errors.New("Item does not exist")
}
