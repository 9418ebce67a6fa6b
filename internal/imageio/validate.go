package imageio

import (
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// AllowedExtensions lists the upload extensions accepted by ValidateUpload.
	AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
	// AllowedFormats lists the decoder names accepted by ValidateUpload.
	AllowedFormats = []string{"jpeg", "png", "webp"}
)

// Upload dimension limits.
const (
	MinDimension = 10
	MaxDimension = 10000
)

// ValidateUpload runs the upload checks in order: size, extension, decode,
// format, dimensions. r is read from its current position.
func ValidateUpload(name string, size, maxBytes int64, r io.Reader) error {
	if size > maxBytes {
		return invalid(CheckSize, name, fmt.Errorf("file size %d exceeds maximum of %dMB", size, maxBytes/(1024*1024)))
	}
	if size == 0 {
		return invalid(CheckSize, name, errors.New("file is empty"))
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(AllowedExtensions, ext) {
		return invalid(CheckExtension, name, fmt.Errorf("invalid file type %q, allowed: %s", ext, strings.Join(AllowedExtensions, ", ")))
	}

	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return invalid(CheckDecode, name, err)
	}
	if !slices.Contains(AllowedFormats, format) {
		return invalid(CheckFormat, name, fmt.Errorf("unsupported image format %s", format))
	}

	if cfg.Width < MinDimension || cfg.Height < MinDimension {
		return invalid(CheckDimensions, name, fmt.Errorf("image too small (minimum %dx%d pixels)", MinDimension, MinDimension))
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return invalid(CheckDimensions, name, fmt.Errorf("image too large (maximum %dx%d pixels)", MaxDimension, MaxDimension))
	}
	return nil
}
