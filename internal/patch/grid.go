package patch

import (
	"errors"
	"fmt"
)

// Tile is a region of the source image fed to the model. Height and Width
// are the extent actually covered, which is smaller than the tile size for
// tiles touching the bottom or right border.
type Tile struct {
	Top    int
	Left   int
	Height int
	Width  int
}

// Geometry errors.
var (
	ErrTileSize = errors.New("tile size must be positive")
	ErrOverlap  = errors.New("overlap must be in [0, tile size)")
	ErrEmpty    = errors.New("image is empty")
)

// CheckTile reports whether tileSize and overlap can form a grid.
func CheckTile(tileSize, overlap int) error {
	if tileSize <= 0 {
		return ErrTileSize
	}
	if overlap < 0 || overlap >= tileSize {
		return fmt.Errorf("%w: overlap %d, tile size %d", ErrOverlap, overlap, tileSize)
	}
	return nil
}

func checkGeometry(height, width, tileSize, overlap int) error {
	if err := CheckTile(tileSize, overlap); err != nil {
		return err
	}
	if height <= 0 || width <= 0 {
		return ErrEmpty
	}
	return nil
}

// Grid lays out ceil(height/stride) x ceil(width/stride) tiles with
// stride = tileSize - overlap, in row-major order.
func Grid(height, width, tileSize, overlap int) ([]Tile, error) {
	if err := checkGeometry(height, width, tileSize, overlap); err != nil {
		return nil, err
	}
	stride := tileSize - overlap
	rows := (height + stride - 1) / stride
	cols := (width + stride - 1) / stride

	tiles := make([]Tile, 0, rows*cols)
	for i := 0; i < rows; i++ {
		top := i * stride
		for j := 0; j < cols; j++ {
			left := j * stride
			tiles = append(tiles, Tile{
				Top:    top,
				Left:   left,
				Height: min(tileSize, height-top),
				Width:  min(tileSize, width-left),
			})
		}
	}
	return tiles, nil
}

// Weights returns the row-major blending weights for t. Along each axis the
// weight ramps linearly from the tile edge and reaches 1 at overlap pixels
// from it; the pixel weight is the smaller of the two axis weights.
// The ramp is anchored one pixel outside the tile, so every weight is > 0.
// Where two neighbouring ramps overlap by exactly overlap pixels they sum to 1.
func Weights(t Tile, overlap int) []float32 {
	w := make([]float32, t.Height*t.Width)
	if overlap == 0 {
		for i := range w {
			w[i] = 1
		}
		return w
	}

	xs := make([]float32, t.Width)
	for x := range xs {
		xs[x] = ramp(x, t.Width, overlap)
	}
	for y := 0; y < t.Height; y++ {
		wy := ramp(y, t.Height, overlap)
		row := w[y*t.Width : (y+1)*t.Width]
		for x := range row {
			row[x] = min(wy, xs[x])
		}
	}
	return w
}

func ramp(p, n, overlap int) float32 {
	d := min(p, n-1-p)
	if d >= overlap {
		return 1
	}
	return float32(d+1) / float32(overlap+1)
}
