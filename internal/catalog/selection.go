package catalog

import (
	"net/url"
	"strings"
)

// SelectionKey is the query key the current engine id is persisted under.
const SelectionKey = "model_slug"

// SelectionValues encodes the selected id for a URL query string.
func SelectionValues(id string) url.Values {
	v := url.Values{}
	if id != "" {
		v.Set(SelectionKey, id)
	}
	return v
}

// SelectionFromValues returns the persisted id, or "" when absent.
func SelectionFromValues(v url.Values) string {
	return strings.TrimSpace(v.Get(SelectionKey))
}
