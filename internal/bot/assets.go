package bot

import (
	"os"
	"path/filepath"

	"signal-bot/internal/domain"
)

// Assets resolves signal images (buy.png, sell.png) inside a directory.
type Assets struct {
	dir string
}

func NewAssets(dir string) *Assets {
	return &Assets{dir: dir}
}

// Path returns the image file for an asset, or false when it is missing.
func (a *Assets) Path(asset domain.Asset) (string, bool) {
	if a == nil || asset == "" {
		return "", false
	}
	path := filepath.Join(a.dir, string(asset)+".png")
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}
