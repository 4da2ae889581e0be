package server

import (
	"github.com/microcosm-collective/pantry/controller"
	h "github.com/microcosm-collective/pantry/helpers"
)

// routes maps every URL the API serves to its handler
func routes(hs *controller.Handlers) map[string]controller.HandlerFunc {
	return map[string]controller.HandlerFunc{
		"/":       hs.RootHandler,
		"/api":    hs.APIHandler,
		"/api/v1": hs.V1Handler,

		h.APITypeCalorie + "/{food_id:[0-9]+}": hs.CaloriesHandler,
		h.APITypeFood:                          hs.FoodsHandler,
		h.APITypeIngredient:                    hs.IngredientsHandler,
		h.APITypeStatus:                        hs.StatusHandler,
		h.APITypeVersion:                       hs.VersionHandler,

		"/metrics": hs.MetricsHandler,
	}
}
