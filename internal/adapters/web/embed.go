// Package web serves the JSON API and a small embedded HTML page over HTTP.
// Binds to localhost only, so there is no auth.
package web

import "embed"

//go:embed static/index.html
var staticFS embed.FS
