package controller

import (
	"net/http"
)

// FoodsHandler is a web handler
func (hs *Handlers) FoodsHandler(w http.ResponseWriter, r *http.Request) {
	c := MakeContext(r, w)

	switch c.GetHTTPMethod() {
	case "OPTIONS":
		c.RespondWithOptions([]string{"OPTIONS", "GET", "HEAD"})
		return
	case "GET", "HEAD":
		hs.readFoods(c)
	default:
		c.RespondWithStatus(http.StatusMethodNotAllowed)
		return
	}
}

// readFoods handles GET
func (hs *Handlers) readFoods(c *Context) {
	ems, status, err := hs.Foods.GetAllFoods(c.Request.Context())
	if err != nil {
		c.RespondWithErrorDetail(err, status)
		return
	}

	c.RespondWithETag(ems)
}
