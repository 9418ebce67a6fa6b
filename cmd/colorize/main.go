package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/Brownie44l1/colorizer-api/internal/colorizer"
	"github.com/Brownie44l1/colorizer-api/internal/config"
	"github.com/Brownie44l1/colorizer-api/internal/model"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("colorize", flag.ContinueOnError)
	inPath := fs.String("in", "", "input image (jpg, png or webp)")
	outPath := fs.String("out", "", "output image (jpg or png)")
	modelPath := fs.String("model", cfg.ModelPath, "ONNX model")
	metaPath := fs.String("meta", cfg.MetadataPath, "model metadata JSON")
	libPath := fs.String("lib", cfg.ONNXLibraryPath, "onnxruntime shared library")
	noPatches := fs.Bool("no-patches", false, "resize to the model input instead of tiling")
	noCompress := fs.Bool("no-compress", !cfg.AutoCompress, "skip size-driven compression")
	maxMB := fs.Float64("max-mb", cfg.MaxSizeMB, "size in MB that triggers compression")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" {
		fs.Usage()
		return errors.New("missing required arguments")
	}
	if *maxMB <= 0 {
		return errors.New("-max-mb must be positive")
	}

	server, err := model.NewServer(*modelPath, *metaPath, func(o *model.ServerOptions) {
		o.LibraryPath = *libPath
		o.InputSize = cfg.ModelInputSize
	})
	if err != nil {
		return err
	}
	defer server.Close()

	opts := []func(*colorizer.Request){colorizer.WithOutput(*outPath), colorizer.WithMaxSizeMB(*maxMB)}
	if *noPatches {
		opts = append(opts, colorizer.WithoutPatches())
	}
	if *noCompress {
		opts = append(opts, colorizer.WithoutCompression())
	}

	c := colorizer.New(server, cfg.ColorizerOptions())
	if err := c.Validate(); err != nil {
		return err
	}
	img, err := c.Colorize(*inPath, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %dx%d\n", *outPath, img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}
