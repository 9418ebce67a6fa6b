package imageio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// withOrientation inserts a minimal big-endian EXIF APP1 segment carrying
// the given orientation right after the SOI marker.
func withOrientation(data []byte, orientation uint16) []byte {
	tiff := []byte{
		'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, byte(orientation >> 8), byte(orientation), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	n := len(payload) + 2
	out := append([]byte{}, data[:2]...)
	out = append(out, 0xff, 0xe1, byte(n>>8), byte(n))
	out = append(out, payload...)
	return append(out, data[2:]...)
}

func TestModeOf(t *testing.T) {
	opaque := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 255
	}
	translucent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	pal := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})

	cases := []struct {
		name string
		img  image.Image
		want Mode
	}{
		{"nrgba opaque", opaque, ModeRGB},
		{"nrgba transparent", translucent, ModeAlpha},
		{"paletted", pal, ModePalette},
		{"gray", image.NewGray(image.Rect(0, 0, 2, 2)), ModeRGB},
		{"ycbcr", image.NewYCbCr(image.Rect(0, 0, 2, 2), image.YCbCrSubsampleRatio420), ModeRGB},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ModeOf(c.img); got != c.want {
				t.Fatalf("mode: got %s want %s", got, c.want)
			}
		})
	}
}

func TestNormalizeAlphaCompositesOnWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
	src.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 0, B: 0, A: 255})

	out := Normalize(src)
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("transparent pixel: got %v want white", got)
	}
	if got := out.NRGBAAt(1, 0); got != (color.NRGBA{R: 255, G: 0, B: 0, A: 255}) {
		t.Fatalf("opaque pixel: got %v want red", got)
	}
}

func TestNormalizePalette(t *testing.T) {
	pal := color.Palette{
		color.NRGBA{R: 0, G: 0, B: 255, A: 255},
		color.NRGBA{A: 0},
		color.NRGBA{R: 0, G: 0, B: 0, A: 128},
	}
	src := image.NewPaletted(image.Rect(0, 0, 3, 1), pal)
	src.SetColorIndex(0, 0, 0)
	src.SetColorIndex(1, 0, 1)
	src.SetColorIndex(2, 0, 2)

	out := Normalize(src)
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{B: 255, A: 255}) {
		t.Fatalf("opaque entry: got %v", got)
	}
	if got := out.NRGBAAt(1, 0); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("transparent entry: got %v want white", got)
	}
	if got := out.NRGBAAt(2, 0); got.A != 255 || got.R < 126 || got.R > 128 {
		t.Fatalf("half transparent black: got %v want ~127 gray", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	var ve *ValidationError

	_, err := Decode(nil, "empty.jpg")
	if !errors.As(err, &ve) || ve.Check != CheckDecode {
		t.Fatalf("empty input: got %v, want decode validation error", err)
	}

	_, err = Decode([]byte("definitely not an image"), "junk.png")
	if !errors.As(err, &ve) || ve.Check != CheckDecode {
		t.Fatalf("corrupt input: got %v, want decode validation error", err)
	}

	_, err = Open(filepath.Join(t.TempDir(), "missing.png"))
	if !IsValidation(err) {
		t.Fatalf("missing file: got %v, want validation error", err)
	}
}

func TestDecodeAppliesEXIFOrientation(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	plain, err := Decode(buf.Bytes(), "plain.jpg")
	if err != nil {
		t.Fatalf("decode plain: %v", err)
	}
	if plain.Bounds().Dx() != 40 || plain.Bounds().Dy() != 20 {
		t.Fatalf("plain dims: got %v", plain.Bounds())
	}

	rotated, err := Decode(withOrientation(buf.Bytes(), 6), "rotated.jpg")
	if err != nil {
		t.Fatalf("decode rotated: %v", err)
	}
	if rotated.Bounds().Dx() != 20 || rotated.Bounds().Dy() != 40 {
		t.Fatalf("rotated dims: got %dx%d want 20x40", rotated.Bounds().Dx(), rotated.Bounds().Dy())
	}
}

func TestSave(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	img.SetNRGBA(1, 1, color.NRGBA{R: 9, G: 99, B: 199, A: 255})

	out := filepath.Join(t.TempDir(), "nested", "dir", "out.png")
	if err := Save(img, out); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := Open(out)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := back.NRGBAAt(1, 1); got != (color.NRGBA{R: 9, G: 99, B: 199, A: 255}) {
		t.Fatalf("png round trip pixel: got %v", got)
	}

	err = Save(img, filepath.Join(t.TempDir(), "out.webp"))
	if !errors.Is(err, ErrUnsupportedOutput) {
		t.Fatalf("webp output: got %v, want ErrUnsupportedOutput", err)
	}
}

func TestContentType(t *testing.T) {
	for path, want := range map[string]string{
		"a.PNG":  "image/png",
		"a.webp": "image/webp",
		"a.jpeg": "image/jpeg",
		"a":      "image/jpeg",
	} {
		if got := ContentType(path); got != want {
			t.Fatalf("ContentType(%q): got %s want %s", path, got, want)
		}
	}
}

func TestValidateUpload(t *testing.T) {
	good := encodePNG(t, image.NewGray(image.Rect(0, 0, 32, 32)))
	tiny := encodePNG(t, image.NewGray(image.Rect(0, 0, 4, 4)))

	cases := []struct {
		name  string
		file  string
		data  []byte
		size  int64
		check string
	}{
		{"ok", "photo.png", good, int64(len(good)), ""},
		{"too big", "photo.png", good, 11 << 20, CheckSize},
		{"bad extension", "photo.gif", good, int64(len(good)), CheckExtension},
		{"not an image", "photo.jpg", []byte("hello"), 5, CheckDecode},
		{"too small", "photo.png", tiny, int64(len(tiny)), CheckDimensions},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateUpload(c.file, c.size, 10<<20, bytes.NewReader(c.data))
			if c.check == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if ve.Check != c.check {
				t.Fatalf("check: got %s want %s", ve.Check, c.check)
			}
		})
	}
}

func TestOpenReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(path, encodePNG(t, image.NewGray(image.Rect(0, 0, 12, 7))), 0o644); err != nil {
		t.Fatal(err)
	}
	img, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 12, 7) {
		t.Fatalf("bounds: got %v", img.Bounds())
	}
}
