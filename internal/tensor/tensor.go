// Package tensor holds the in-memory float representation of an RGB image
// that flows between the patch processor and the inference engine.
package tensor

import (
	"fmt"
	"image"
	"math"
)

// Channels is the number of color channels in every Tensor.
const Channels = 3

// Tensor is a Height x Width x 3 image stored row-major in HWC order.
// Values are nominally in [0, 1].
type Tensor struct {
	Height int
	Width  int
	Data   []float32
}

// New allocates a zero-filled tensor.
func New(height, width int) *Tensor {
	return &Tensor{
		Height: height,
		Width:  width,
		Data:   make([]float32, height*width*Channels),
	}
}

// Index returns the offset of the first channel of pixel (y, x).
func (t *Tensor) Index(y, x int) int {
	return (y*t.Width + x) * Channels
}

// SameShape reports whether both tensors have the same spatial size.
func (t *Tensor) SameShape(o *Tensor) bool {
	return o != nil && t.Height == o.Height && t.Width == o.Width && len(o.Data) == len(t.Data)
}

// Validate checks that Data matches the declared dimensions.
func (t *Tensor) Validate() error {
	if t.Height <= 0 || t.Width <= 0 {
		return fmt.Errorf("invalid tensor dimensions %dx%d", t.Width, t.Height)
	}
	if len(t.Data) != t.Height*t.Width*Channels {
		return fmt.Errorf("tensor data has %d values, want %d", len(t.Data), t.Height*t.Width*Channels)
	}
	return nil
}

// FromImage converts img to a tensor with samples normalized to [0, 1].
func FromImage(img image.Image) *Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := New(h, w)

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
			for x := 0; x < w; x++ {
				i := t.Index(y, x)
				t.Data[i] = float32(row[x*4]) / 255.0
				t.Data[i+1] = float32(row[x*4+1]) / 255.0
				t.Data[i+2] = float32(row[x*4+2]) / 255.0
			}
		}
		return t
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := t.Index(y, x)
			t.Data[i] = float32(r) / 65535.0
			t.Data[i+1] = float32(g) / 65535.0
			t.Data[i+2] = float32(bl) / 65535.0
		}
	}
	return t
}

// Crop copies the h x w region whose top-left corner is (top, left).
// The region must lie inside t.
func (t *Tensor) Crop(top, left, h, w int) *Tensor {
	out := New(h, w)
	for y := 0; y < h; y++ {
		src := t.Index(top+y, left)
		copy(out.Data[out.Index(y, 0):out.Index(y, 0)+w*Channels], t.Data[src:src+w*Channels])
	}
	return out
}

// PadTo returns a height x width tensor with t in the top-left corner and
// zeros elsewhere. If t already has that size it is returned unchanged.
func (t *Tensor) PadTo(height, width int) *Tensor {
	if t.Height == height && t.Width == width {
		return t
	}
	out := New(height, width)
	for y := 0; y < t.Height && y < height; y++ {
		n := min(t.Width, width) * Channels
		copy(out.Data[out.Index(y, 0):out.Index(y, 0)+n], t.Data[t.Index(y, 0):t.Index(y, 0)+n])
	}
	return out
}

// ToNRGBA scales samples to the 8-bit range, rounding to nearest and
// clipping to [0, 255]. The result is fully opaque.
func (t *Tensor) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			i := t.Index(y, x)
			o := img.PixOffset(x, y)
			img.Pix[o] = to8(t.Data[i])
			img.Pix[o+1] = to8(t.Data[i+1])
			img.Pix[o+2] = to8(t.Data[i+2])
			img.Pix[o+3] = 255
		}
	}
	return img
}

func to8(v float32) uint8 {
	f := math.Round(float64(v) * 255.0)
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f)
}
