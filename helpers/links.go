package helpers

import (
	"fmt"
)

// LinkArrayType is a collection of links
type LinkArrayType struct {
	Links []LinkType `json:"links"`
}

// LinkType is a link
type LinkType struct {
	Rel   string `json:"rel,omitempty"` // REST
	Href  string `json:"href"`
	Title string `json:"title,omitempty"`
}

// GetLink returns a link to an item type, or to a single item of that type
// when itemID is positive
func GetLink(rel string, title string, itemType string, itemID int64) LinkType {

	var href string
	if itemID > 0 {
		href = fmt.Sprintf("%s/%d", ItemTypesToAPIItem[itemType], itemID)
	} else {
		href = ItemTypesToAPIItem[itemType]
	}

	return LinkType{Rel: rel, Href: href, Title: title}
}
