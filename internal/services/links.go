package services

import (
	"net/url"
	"strings"
)

// StaticPrefix is the route under which stored images are served.
const StaticPrefix = "/static/"

// AssetLinker turns store-relative asset paths into client URLs.
type AssetLinker struct {
	BaseURL string
}

func (l AssetLinker) URL(rel string) string {
	parts := strings.Split(strings.TrimLeft(rel, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(l.BaseURL, "/") + StaticPrefix + strings.Join(parts, "/")
}
