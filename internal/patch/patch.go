// Package patch runs a fixed-size model over images of any size by splitting
// them into overlapping tiles and blending the predictions back together.
package patch

import (
	"fmt"
	"image"
	"log"

	"github.com/Brownie44l1/colorizer-api/internal/tensor"
)

// InferFunc maps a tileSize x tileSize tensor to a tensor of the same shape.
type InferFunc func(tile *tensor.Tensor) (*tensor.Tensor, error)

// Process colorizes img tile by tile and returns an 8-bit image with the
// same dimensions.
func Process(img image.Image, tileSize, overlap int, infer InferFunc) (*image.NRGBA, error) {
	out, err := Blend(tensor.FromImage(img), tileSize, overlap, infer)
	if err != nil {
		return nil, err
	}
	return out.ToNRGBA(), nil
}

// Blend is Process on float tensors. The result keeps the model's value
// range; no clipping is applied.
func Blend(src *tensor.Tensor, tileSize, overlap int, infer InferFunc) (*tensor.Tensor, error) {
	tiles, err := Grid(src.Height, src.Width, tileSize, overlap)
	if err != nil {
		return nil, err
	}
	log.Printf("Patch processing %dx%d image: %d tiles of %d (overlap %d)",
		src.Width, src.Height, len(tiles), tileSize, overlap)

	acc := tensor.New(src.Height, src.Width)
	weights := make([]float32, src.Height*src.Width)

	for _, t := range tiles {
		in := src.Crop(t.Top, t.Left, t.Height, t.Width).PadTo(tileSize, tileSize)
		pred, err := infer(in)
		if err != nil {
			return nil, fmt.Errorf("tile at (%d,%d): %w", t.Top, t.Left, err)
		}
		if !pred.SameShape(in) {
			return nil, fmt.Errorf("tile at (%d,%d): model returned %dx%d, want %dx%d",
				t.Top, t.Left, pred.Width, pred.Height, tileSize, tileSize)
		}
		pred = pred.Crop(0, 0, t.Height, t.Width)

		tw := Weights(t, overlap)
		for y := 0; y < t.Height; y++ {
			for x := 0; x < t.Width; x++ {
				w := tw[y*t.Width+x]
				p := pred.Index(y, x)
				a := acc.Index(t.Top+y, t.Left+x)
				acc.Data[a] += pred.Data[p] * w
				acc.Data[a+1] += pred.Data[p+1] * w
				acc.Data[a+2] += pred.Data[p+2] * w
				weights[(t.Top+y)*src.Width+t.Left+x] += w
			}
		}
	}

	for i, w := range weights {
		if w == 0 {
			w = 1
		}
		acc.Data[i*tensor.Channels] /= w
		acc.Data[i*tensor.Channels+1] /= w
		acc.Data[i*tensor.Channels+2] /= w
	}
	return acc, nil
}
