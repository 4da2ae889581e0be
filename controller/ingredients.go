package controller

import (
	"net/http"
)

// IngredientsHandler is a web handler
func (hs *Handlers) IngredientsHandler(w http.ResponseWriter, r *http.Request) {
	c := MakeContext(r, w)

	switch c.GetHTTPMethod() {
	case "OPTIONS":
		c.RespondWithOptions([]string{"OPTIONS", "GET", "HEAD"})
		return
	case "GET", "HEAD":
		ems, status, err := hs.Catalogue.GetIngredients(c.Request.Context())
		if err != nil {
			c.RespondWithErrorDetail(err, status)
			return
		}
		c.RespondWithData(ems)
	default:
		c.RespondWithStatus(http.StatusMethodNotAllowed)
		return
	}
}
