package controller

import (
	"net/http"
)

// CaloriesHandler is a web handler
func (hs *Handlers) CaloriesHandler(w http.ResponseWriter, r *http.Request) {
	c := MakeContext(r, w)

	switch c.GetHTTPMethod() {
	case "OPTIONS":
		c.RespondWithOptions([]string{"OPTIONS", "GET", "HEAD"})
		return
	case "GET", "HEAD":
		hs.readCalories(c)
	default:
		c.RespondWithStatus(http.StatusMethodNotAllowed)
		return
	}
}

// readCalories handles GET
func (hs *Handlers) readCalories(c *Context) {
	foodID, err := c.GetInt64RouteVar("food_id")
	if err != nil {
		c.RespondWithErrorDetail(err, http.StatusBadRequest)
		return
	}

	m, status, err := hs.Catalogue.GetCalories(c.Request.Context(), foodID)
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	c.RespondWithData(m)
}
