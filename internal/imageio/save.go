package imageio

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// OutputQuality is the JPEG quality used when a result is saved as JPEG.
const OutputQuality = 95

// Save encodes img in the format implied by the extension of path, creating
// the parent directory when needed.
func Save(img image.Image, path string) error {
	if _, err := imaging.FormatFromFilename(path); err != nil {
		return fmt.Errorf("save %s: %w", path, ErrUnsupportedOutput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(OutputQuality)); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// ContentType returns the MIME type for an image path, defaulting to JPEG.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
