package controller

import (
	"net/http"

	h "github.com/microcosm-collective/pantry/helpers"
)

// RootHandler is a web handler
func (hs *Handlers) RootHandler(w http.ResponseWriter, r *http.Request) {
	respondWithLinks(w, r, h.LinkArrayType{Links: []h.LinkType{
		{Rel: "api", Href: "/api"},
	}})
}

// APIHandler is a web handler
func (hs *Handlers) APIHandler(w http.ResponseWriter, r *http.Request) {
	respondWithLinks(w, r, h.LinkArrayType{Links: []h.LinkType{
		{Rel: "v1", Href: "/api/v1"},
	}})
}

// V1Handler is a web handler
func (hs *Handlers) V1Handler(w http.ResponseWriter, r *http.Request) {
	respondWithLinks(w, r, h.LinkArrayType{Links: []h.LinkType{
		h.GetLink("calorie", "", h.ItemTypeCalorie, 0),
		h.GetLink("food", "", h.ItemTypeFood, 0),
		h.GetLink("ingredient", "", h.ItemTypeIngredient, 0),
		h.GetLink("status", "", h.ItemTypeStatus, 0),
		h.GetLink("version", "", h.ItemTypeVersion, 0),
	}})
}

func respondWithLinks(w http.ResponseWriter, r *http.Request, links h.LinkArrayType) {
	c := MakeContext(r, w)

	switch c.GetHTTPMethod() {
	case "OPTIONS":
		c.RespondWithOptions([]string{"OPTIONS", "GET"})
		return
	case "GET":
		c.RespondWithData(links)
		return
	default:
		c.RespondWithStatus(http.StatusMethodNotAllowed)
		return
	}
}
