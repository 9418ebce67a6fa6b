// Package compress shrinks oversized uploads to a file-size budget by
// resizing and re-encoding them as JPEG at decreasing quality.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"slices"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/Brownie44l1/colorizer-api/internal/imageio"
)

// ErrTempWrite is returned when the compressed file cannot be written. The
// source is still usable as is.
var ErrTempWrite = errors.New("cannot write compressed image")

// Options controls Compress.
type Options struct {
	// MaxSizeBytes is the file-size budget.
	MaxSizeBytes int64
	// MaxDimension caps the longest side before the quality ladder runs.
	MaxDimension int
	// QualityLadder is tried in order; the first level that fits wins.
	QualityLadder []int
	// FallbackDimension caps the longest side when no ladder level fits.
	FallbackDimension int
	// TempDir receives the compressed file. Defaults to os.TempDir().
	TempDir string
}

// DefaultOptions returns a 1MB budget, a 1600px cap, qualities 85 down to
// 25 in steps of 10 and an 800px emergency cap.
func DefaultOptions() Options {
	return Options{
		MaxSizeBytes:      1 << 20,
		MaxDimension:      1600,
		QualityLadder:     []int{85, 75, 65, 55, 45, 35, 25},
		FallbackDimension: 800,
		TempDir:           filepath.Join(os.TempDir(), "colorization"),
	}
}

// Result describes the outcome of Compress.
type Result struct {
	// Path is the file to use downstream. It equals the source path when
	// Compressed is false.
	Path       string
	Compressed bool
	Quality    int
	Fallback   bool
	Width      int
	Height     int
	Size       int64
}

func (o Options) validate() error {
	if o.MaxSizeBytes <= 0 {
		return errors.New("max size must be positive")
	}
	if o.MaxDimension <= 0 || o.FallbackDimension <= 0 {
		return errors.New("max dimensions must be positive")
	}
	if len(o.QualityLadder) == 0 {
		return errors.New("quality ladder is empty")
	}
	for _, q := range o.QualityLadder {
		if q < 1 || q > 100 {
			return fmt.Errorf("quality %d out of range 1..100", q)
		}
	}
	return nil
}

// Compress returns path unchanged when the file already fits the budget.
// Otherwise it writes a new JPEG into opts.TempDir and returns its path; the
// caller owns that file. The source file is never modified.
func Compress(path string, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("compress options: %w", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, &imageio.ValidationError{Check: imageio.CheckDecode, Path: path, Err: err}
	}
	if fi.Size() == 0 {
		return nil, &imageio.ValidationError{Check: imageio.CheckDecode, Path: path, Err: errors.New("empty file")}
	}
	if fi.Size() <= opts.MaxSizeBytes {
		return &Result{Path: path, Size: fi.Size()}, nil
	}

	img, err := imageio.Open(path)
	if err != nil {
		return nil, err
	}

	var src image.Image = img
	if b := img.Bounds(); b.Dx() > opts.MaxDimension || b.Dy() > opts.MaxDimension {
		src = imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	for _, q := range opts.QualityLadder {
		buf.Reset()
		if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
			return nil, fmt.Errorf("encode at quality %d: %w", q, err)
		}
		if int64(buf.Len()) <= opts.MaxSizeBytes {
			log.Printf("Compressed %s: %d -> %d bytes at quality %d", path, fi.Size(), buf.Len(), q)
			return write(buf.Bytes(), src, q, false, opts.TempDir)
		}
	}

	lowest := slices.Min(opts.QualityLadder)
	small := shrink(src, opts.FallbackDimension)
	buf.Reset()
	if err := imaging.Encode(&buf, small, imaging.JPEG, imaging.JPEGQuality(lowest)); err != nil {
		return nil, fmt.Errorf("encode fallback: %w", err)
	}
	log.Printf("Compressed %s with fallback: %d -> %d bytes at quality %d (%dx%d)",
		path, fi.Size(), buf.Len(), lowest, small.Bounds().Dx(), small.Bounds().Dy())
	return write(buf.Bytes(), small, lowest, true, opts.TempDir)
}

// shrink fits img inside a limit x limit box. Smaller images pass through.
func shrink(img image.Image, limit int) image.Image {
	b := img.Bounds()
	if b.Dx() <= limit && b.Dy() <= limit {
		return img
	}
	g := gift.New(gift.ResizeToFit(limit, limit, gift.LanczosResampling))
	dst := image.NewNRGBA(g.Bounds(b))
	g.Draw(dst, img)
	return dst
}

func write(data []byte, img image.Image, quality int, fallback bool, dir string) (*Result, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %w", ErrTempWrite, err)
	}
	out := filepath.Join(dir, fmt.Sprintf("compressed_%s.jpg", uuid.New().String()))
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTempWrite, err)
	}
	return &Result{
		Path:       out,
		Compressed: true,
		Quality:    quality,
		Fallback:   fallback,
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		Size:       int64(len(data)),
	}, nil
}
