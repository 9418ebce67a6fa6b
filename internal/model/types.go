package model

import (
	"errors"
	"fmt"
	"slices"
)

// Tensor layouts understood by the server.
const (
	LayoutNHWC = "NHWC"
	LayoutNCHW = "NCHW"
)

// ErrModelUnavailable wraps every failure to bring the model up at startup.
var ErrModelUnavailable = errors.New("colorization model unavailable")

type Metadata struct {
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	ImageSize   int     `json:"image_size"`
	Layout      string  `json:"layout"`
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
}

// resolve fills defaults, replaces dynamic (-1) dimensions and checks that
// the shapes describe one square RGB tile in and out.
func (m *Metadata) resolve(fallbackSize int) error {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if len(m.InputShape) != 4 {
		return fmt.Errorf("input shape %v: want 4 dimensions", m.InputShape)
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = slices.Clone(m.InputShape)
	}
	if len(m.OutputShape) != 4 {
		return fmt.Errorf("output shape %v: want 4 dimensions", m.OutputShape)
	}

	if m.Layout == "" {
		switch {
		case m.InputShape[3] == 3:
			m.Layout = LayoutNHWC
		case m.InputShape[1] == 3:
			m.Layout = LayoutNCHW
		default:
			return fmt.Errorf("cannot infer layout from input shape %v", m.InputShape)
		}
	}

	var hi, wi, ci int
	switch m.Layout {
	case LayoutNHWC:
		hi, wi, ci = 1, 2, 3
	case LayoutNCHW:
		hi, wi, ci = 2, 3, 1
	default:
		return fmt.Errorf("unknown layout %q", m.Layout)
	}

	size := int64(m.ImageSize)
	if size <= 0 {
		size = int64(fallbackSize)
	}
	for _, shape := range [][]int64{m.InputShape, m.OutputShape} {
		if shape[0] < 0 {
			shape[0] = 1
		}
		for _, i := range []int{hi, wi} {
			if shape[i] < 0 {
				shape[i] = size
			}
		}
	}

	if m.InputShape[0] != 1 {
		return fmt.Errorf("input shape %v: batch must be 1", m.InputShape)
	}
	if m.InputShape[ci] != 3 {
		return fmt.Errorf("input shape %v: want 3 channels", m.InputShape)
	}
	if m.InputShape[hi] != m.InputShape[wi] || m.InputShape[hi] <= 0 {
		return fmt.Errorf("input shape %v is not a square tile", m.InputShape)
	}
	if m.ImageSize <= 0 {
		m.ImageSize = int(m.InputShape[hi])
	}
	if int64(m.ImageSize) != m.InputShape[hi] {
		return fmt.Errorf("image size %d does not match input shape %v", m.ImageSize, m.InputShape)
	}
	if !slices.Equal(m.OutputShape, m.InputShape) {
		return fmt.Errorf("output shape %v must match input shape %v", m.OutputShape, m.InputShape)
	}
	return nil
}
