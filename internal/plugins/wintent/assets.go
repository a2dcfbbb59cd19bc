package wintent

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed assets/wintent-logo.png assets/icon_square.ico
var assetsFS embed.FS

// MaterializeAssets writes the packaged logo and favicon into dir and returns it. An
// empty dir creates a fresh temporary directory. Existing files are overwritten.
func MaterializeAssets(dir string) (string, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "wintent-assets-")
		if err != nil {
			return "", fmt.Errorf("wintent: create assets dir: %w", err)
		}
		dir = tmp
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("wintent: ensure assets dir: %w", err)
	}

	for _, name := range []string{LogoFile, FaviconFile} {
		data, err := fs.ReadFile(assetsFS, "assets/"+name)
		if err != nil {
			return "", fmt.Errorf("wintent: read packaged %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return "", fmt.Errorf("wintent: write %s: %w", name, err)
		}
	}
	return dir, nil
}
