package model

import "github.com/Brownie44l1/colorizer-api/internal/tensor"

// pack copies an HWC tile into dst using the model's layout.
func pack(dst []float32, tile *tensor.Tensor, layout string) {
	if layout == LayoutNHWC {
		copy(dst, tile.Data)
		return
	}
	plane := tile.Height * tile.Width
	for p := 0; p < plane; p++ {
		i := p * tensor.Channels
		dst[p] = tile.Data[i]
		dst[plane+p] = tile.Data[i+1]
		dst[2*plane+p] = tile.Data[i+2]
	}
}

// unpack converts a model output into a fresh HWC tensor.
func unpack(src []float32, size int, layout string) *tensor.Tensor {
	out := tensor.New(size, size)
	if layout == LayoutNHWC {
		copy(out.Data, src)
		return out
	}
	plane := size * size
	for p := 0; p < plane; p++ {
		i := p * tensor.Channels
		out.Data[i] = src[p]
		out.Data[i+1] = src[plane+p]
		out.Data[i+2] = src[2*plane+p]
	}
	return out
}
