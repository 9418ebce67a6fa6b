// Package colorizer sequences compression, tiling or resizing, inference and
// persistence for a single image.
package colorizer

import (
	"errors"
	"fmt"
	"image"
	"log"
	"os"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/Brownie44l1/colorizer-api/internal/compress"
	"github.com/Brownie44l1/colorizer-api/internal/imageio"
	"github.com/Brownie44l1/colorizer-api/internal/patch"
	"github.com/Brownie44l1/colorizer-api/internal/tensor"
)

// ErrModelNotLoaded is returned by Colorize when no model is attached.
var ErrModelNotLoaded = errors.New("model not loaded")

// Predictor is a fixed-input-size colorization model.
type Predictor interface {
	Predict(tile *tensor.Tensor) (*tensor.Tensor, error)
	InputSize() int
}

// Options are the process-wide defaults of a Colorizer.
type Options struct {
	Overlap int
	// PatchThreshold is the largest side processed without tiling. Zero
	// means the model input size.
	PatchThreshold int
	AutoCompress   bool
	Compress       compress.Options
}

// DefaultOptions returns a 32px overlap with compression enabled.
func DefaultOptions() Options {
	return Options{
		Overlap:      32,
		AutoCompress: true,
		Compress:     compress.DefaultOptions(),
	}
}

// Request holds per-call settings. Fields start from the Colorizer's Options.
type Request struct {
	OutputPath   string
	UsePatches   bool
	AutoCompress bool
	MaxSizeBytes int64
}

// WithOutput writes the result to path, encoded by its extension.
func WithOutput(path string) func(r *Request) {
	return func(r *Request) { r.OutputPath = path }
}

// WithoutPatches forces the single-inference resize path.
func WithoutPatches() func(r *Request) {
	return func(r *Request) { r.UsePatches = false }
}

// WithoutCompression skips the size check.
func WithoutCompression() func(r *Request) {
	return func(r *Request) { r.AutoCompress = false }
}

// WithMaxSizeMB sets the size that triggers compression.
func WithMaxSizeMB(mb float64) func(r *Request) {
	return func(r *Request) { r.MaxSizeBytes = int64(mb * 1024 * 1024) }
}

// Colorizer is safe for concurrent use when its Predictor is.
type Colorizer struct {
	model Predictor
	opts  Options
}

// New returns a Colorizer. A nil model is allowed; Colorize then fails with
// ErrModelNotLoaded.
func New(model Predictor, opts Options) *Colorizer {
	return &Colorizer{model: model, opts: opts}
}

// Ready reports whether a model is attached.
func (c *Colorizer) Ready() bool {
	return c != nil && c.model != nil
}

// Validate checks the options against the attached model's tile size.
func (c *Colorizer) Validate() error {
	if !c.Ready() {
		return ErrModelNotLoaded
	}
	if err := patch.CheckTile(c.model.InputSize(), c.opts.Overlap); err != nil {
		return fmt.Errorf("patch overlap: %w", err)
	}
	return nil
}

// Colorize colorizes the image at inputPath and returns it at its original
// (post-compression) resolution.
func (c *Colorizer) Colorize(inputPath string, opts ...func(r *Request)) (*image.NRGBA, error) {
	if !c.Ready() {
		return nil, ErrModelNotLoaded
	}

	req := Request{
		UsePatches:   true,
		AutoCompress: c.opts.AutoCompress,
		MaxSizeBytes: c.opts.Compress.MaxSizeBytes,
	}
	for _, applyOpt := range opts {
		applyOpt(&req)
	}

	src := inputPath
	if req.AutoCompress {
		copts := c.opts.Compress
		copts.MaxSizeBytes = req.MaxSizeBytes
		res, err := compress.Compress(inputPath, copts)
		switch {
		case errors.Is(err, compress.ErrTempWrite):
			log.Printf("warning: continuing with uncompressed %s: %v", inputPath, err)
		case err != nil:
			return nil, fmt.Errorf("compress: %w", err)
		default:
			if res.Path != inputPath {
				defer removeTemp(res.Path)
			}
			src = res.Path
		}
	}

	img, err := imageio.Open(src)
	if err != nil {
		return nil, err
	}

	size := c.model.InputSize()
	threshold := c.opts.PatchThreshold
	if threshold <= 0 {
		threshold = size
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	log.Printf("Colorizing %s: %dx%d, patches=%t", inputPath, w, h, req.UsePatches)

	var out *image.NRGBA
	if req.UsePatches && (w > threshold || h > threshold) {
		out, err = patch.Process(img, size, c.opts.Overlap, c.model.Predict)
	} else {
		out, err = c.direct(img, size)
	}
	if err != nil {
		return nil, err
	}

	if req.OutputPath != "" {
		if err := imageio.Save(out, req.OutputPath); err != nil {
			return nil, err
		}
		log.Printf("Saved colorized image to %s", req.OutputPath)
	}
	return out, nil
}

// direct squeezes the whole image into one model input and scales the
// prediction back up.
func (c *Colorizer) direct(img *image.NRGBA, size int) (*image.NRGBA, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	small := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	pred, err := c.model.Predict(tensor.FromImage(small))
	if err != nil {
		return nil, err
	}
	if pred.Height != size || pred.Width != size {
		return nil, fmt.Errorf("model returned %dx%d, want %dx%d", pred.Width, pred.Height, size, size)
	}

	full := resize.Resize(uint(w), uint(h), pred.ToNRGBA(), resize.Lanczos3)
	return imaging.Clone(full), nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: failed to clean up %s: %v", path, err)
		return
	}
	log.Printf("Cleaned up temporary file: %s", path)
}
