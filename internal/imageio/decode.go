// Package imageio decodes uploads into flat, upright RGB images and writes
// results back to disk.
package imageio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Mode is the closed set of pixel layouts a decoded image is reduced to
// before normalization.
type Mode int

const (
	// ModeRGB covers every opaque layout: RGB, YCbCr, gray, CMYK.
	ModeRGB Mode = iota
	// ModeAlpha covers RGBA and gray+alpha images with any transparency.
	ModeAlpha
	// ModePalette covers indexed images.
	ModePalette
)

func (m Mode) String() string {
	switch m {
	case ModeAlpha:
		return "alpha"
	case ModePalette:
		return "palette"
	default:
		return "rgb"
	}
}

var normalizers = map[Mode]func(image.Image) *image.NRGBA{
	ModeRGB:     imaging.Clone,
	ModeAlpha:   flattenOnWhite,
	ModePalette: expandPalette,
}

// ModeOf classifies img.
func ModeOf(img image.Image) Mode {
	if _, ok := img.(*image.Paletted); ok {
		return ModePalette
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
		return ModeAlpha
	}
	return ModeRGB
}

// Normalize converts img to an opaque NRGBA image with origin (0, 0).
func Normalize(img image.Image) *image.NRGBA {
	return normalizers[ModeOf(img)](img)
}

// Open decodes the image at path, applies its EXIF orientation and
// normalizes it to flat RGB.
func Open(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, invalid(CheckDecode, path, err)
	}
	return Decode(data, path)
}

// Decode is Open for bytes already in memory. name is used in errors only.
func Decode(data []byte, name string) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, invalid(CheckDecode, name, errors.New("empty file"))
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, invalid(CheckDecode, name, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, invalid(CheckDimensions, name, errors.New("image has no pixels"))
	}
	return Normalize(img), nil
}

func flattenOnWhite(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// expandPalette flattens every palette entry onto white, then expands the
// indices.
func expandPalette(img image.Image) *image.NRGBA {
	p := img.(*image.Paletted)
	flat := make([]color.NRGBA, len(p.Palette))
	for i, c := range p.Palette {
		flat[i] = overWhite(color.NRGBAModel.Convert(c).(color.NRGBA))
	}

	b := p.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			idx := int(p.ColorIndexAt(b.Min.X+x, b.Min.Y+y))
			c := color.NRGBA{A: 255}
			if idx < len(flat) {
				c = flat[idx]
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

func overWhite(c color.NRGBA) color.NRGBA {
	a := uint32(c.A)
	blend := func(v uint8) uint8 {
		return uint8((uint32(v)*a + 255*(255-a) + 127) / 255)
	}
	return color.NRGBA{R: blend(c.R), G: blend(c.G), B: blend(c.B), A: 255}
}
