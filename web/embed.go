package web

import (
	"embed"
	"io/fs"
)

// staticFS embeds the frontend build output (web/dist) into the Go binary.
//
//go:embed all:dist
var staticFS embed.FS

// FS returns the embedded frontend with the "dist" prefix stripped.
func FS() (fs.FS, error) {
	return fs.Sub(staticFS, "dist")
}
