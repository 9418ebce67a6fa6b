package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/colorizer-api/internal/tensor"
)

func TestMetadataResolve(t *testing.T) {
	cases := []struct {
		name    string
		meta    Metadata
		layout  string
		size    int
		wantErr bool
	}{
		{name: "nhwc", meta: Metadata{InputShape: []int64{1, 256, 256, 3}}, layout: LayoutNHWC, size: 256},
		{name: "nchw", meta: Metadata{InputShape: []int64{1, 3, 128, 128}}, layout: LayoutNCHW, size: 128},
		{name: "dynamic uses fallback", meta: Metadata{InputShape: []int64{-1, -1, -1, 3}}, layout: LayoutNHWC, size: 64},
		{name: "dynamic uses image size", meta: Metadata{InputShape: []int64{-1, -1, -1, 3}, ImageSize: 96}, layout: LayoutNHWC, size: 96},
		{name: "not square", meta: Metadata{InputShape: []int64{1, 256, 128, 3}}, wantErr: true},
		{name: "batch", meta: Metadata{InputShape: []int64{4, 256, 256, 3}}, wantErr: true},
		{name: "rank", meta: Metadata{InputShape: []int64{256, 256, 3}}, wantErr: true},
		{name: "size mismatch", meta: Metadata{InputShape: []int64{1, 256, 256, 3}, ImageSize: 128}, wantErr: true},
		{name: "output mismatch", meta: Metadata{InputShape: []int64{1, 256, 256, 3}, OutputShape: []int64{1, 256, 256, 2}}, wantErr: true},
		{name: "no channel axis", meta: Metadata{InputShape: []int64{1, 256, 256, 1}}, wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := c.meta
			err := m.resolve(64)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", m)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if m.Layout != c.layout || m.ImageSize != c.size {
				t.Fatalf("got layout %s size %d, want %s %d", m.Layout, m.ImageSize, c.layout, c.size)
			}
			if m.InputName != "input" || m.OutputName != "output" {
				t.Fatalf("default names: got %q %q", m.InputName, m.OutputName)
			}
			if len(m.OutputShape) != 4 || m.OutputShape[0] != 1 {
				t.Fatalf("output shape not resolved: %v", m.OutputShape)
			}
		})
	}
}

func TestPackUnpack(t *testing.T) {
	tile := tensor.New(2, 2)
	for i := range tile.Data {
		tile.Data[i] = float32(i)
	}

	nhwc := make([]float32, len(tile.Data))
	pack(nhwc, tile, LayoutNHWC)
	for i := range nhwc {
		if nhwc[i] != tile.Data[i] {
			t.Fatalf("nhwc value %d: got %v want %v", i, nhwc[i], tile.Data[i])
		}
	}

	nchw := make([]float32, len(tile.Data))
	pack(nchw, tile, LayoutNCHW)
	want := []float32{0, 3, 6, 9, 1, 4, 7, 10, 2, 5, 8, 11}
	for i := range want {
		if nchw[i] != want[i] {
			t.Fatalf("nchw value %d: got %v want %v", i, nchw[i], want[i])
		}
	}

	for _, layout := range []string{LayoutNHWC, LayoutNCHW} {
		src := nhwc
		if layout == LayoutNCHW {
			src = nchw
		}
		back := unpack(src, 2, layout)
		for i := range tile.Data {
			if back.Data[i] != tile.Data[i] {
				t.Fatalf("%s unpack value %d: got %v want %v", layout, i, back.Data[i], tile.Data[i])
			}
		}
	}
}

func TestNewServerStartupErrors(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "colorization_model.onnx")
	metaPath := filepath.Join(dir, "model_metadata.json")

	if _, err := NewServer(modelPath, metaPath); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("missing model: got %v", err)
	}

	if err := os.WriteFile(modelPath, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewServer(modelPath, metaPath); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("missing metadata: got %v", err)
	}

	if err := os.WriteFile(metaPath, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewServer(modelPath, metaPath); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("corrupt metadata: got %v", err)
	}

	if err := os.WriteFile(metaPath, []byte(`{"input_shape":[1,256,128,3]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewServer(modelPath, metaPath); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("invalid metadata: got %v", err)
	}
}
