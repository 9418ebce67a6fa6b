// Package config loads the service configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Brownie44l1/colorizer-api/internal/colorizer"
	"github.com/Brownie44l1/colorizer-api/internal/compress"
)

type Config struct {
	Port              string
	ModelPath         string
	MetadataPath      string
	ONNXLibraryPath   string
	ModelInputSize    int
	PatchOverlap      int
	PatchMinDimension int
	AutoCompress      bool
	MaxSizeMB         float64
	MaxDimension      int
	QualityLadder     []int
	FallbackDimension int
	MaxUploadMB       int
	TempDir           string
}

// Load reads .env from the working directory when present, then the
// process environment. Malformed values are errors.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		ModelPath:       getEnv("MODEL_PATH", filepath.Join("models", "colorization_model.onnx")),
		MetadataPath:    getEnv("MODEL_METADATA_PATH", filepath.Join("models", "model_metadata.json")),
		ONNXLibraryPath: getEnv("ONNXRUNTIME_LIB", ""),
		TempDir:         getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "colorization")),
	}

	var err error
	if cfg.ModelInputSize, err = getEnvInt("MODEL_INPUT_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.PatchOverlap, err = getEnvInt("PATCH_OVERLAP", 32); err != nil {
		return nil, err
	}
	if cfg.PatchMinDimension, err = getEnvInt("PATCH_MIN_DIMENSION", 0); err != nil {
		return nil, err
	}
	if cfg.AutoCompress, err = getEnvBool("AUTO_COMPRESS", true); err != nil {
		return nil, err
	}
	if cfg.MaxSizeMB, err = getEnvFloat("MAX_SIZE_MB", 1.0); err != nil {
		return nil, err
	}
	if cfg.MaxDimension, err = getEnvInt("MAX_DIMENSION", 1600); err != nil {
		return nil, err
	}
	if cfg.QualityLadder, err = getEnvInts("QUALITY_LADDER", []int{85, 75, 65, 55, 45, 35, 25}); err != nil {
		return nil, err
	}
	if cfg.FallbackDimension, err = getEnvInt("FALLBACK_DIMENSION", 800); err != nil {
		return nil, err
	}
	if cfg.MaxUploadMB, err = getEnvInt("MAX_UPLOAD_MB", 10); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.ModelInputSize <= 0:
		return errors.New("MODEL_INPUT_SIZE must be positive")
	case c.PatchOverlap < 0 || c.PatchOverlap >= c.ModelInputSize:
		return fmt.Errorf("PATCH_OVERLAP must be in [0, %d)", c.ModelInputSize)
	case c.PatchMinDimension < 0:
		return errors.New("PATCH_MIN_DIMENSION must not be negative")
	case c.MaxSizeMB <= 0:
		return errors.New("MAX_SIZE_MB must be positive")
	case c.MaxDimension <= 0 || c.FallbackDimension <= 0:
		return errors.New("MAX_DIMENSION and FALLBACK_DIMENSION must be positive")
	case len(c.QualityLadder) == 0:
		return errors.New("QUALITY_LADDER must not be empty")
	case c.MaxUploadMB <= 0:
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	for _, q := range c.QualityLadder {
		if q < 1 || q > 100 {
			return fmt.Errorf("QUALITY_LADDER: quality %d out of range 1..100", q)
		}
	}
	return nil
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func (c *Config) CompressOptions() compress.Options {
	return compress.Options{
		MaxSizeBytes:      int64(c.MaxSizeMB * 1024 * 1024),
		MaxDimension:      c.MaxDimension,
		QualityLadder:     c.QualityLadder,
		FallbackDimension: c.FallbackDimension,
		TempDir:           c.TempDir,
	}
}

func (c *Config) ColorizerOptions() colorizer.Options {
	return colorizer.Options{
		Overlap:        c.PatchOverlap,
		PatchThreshold: c.PatchMinDimension,
		AutoCompress:   c.AutoCompress,
		Compress:       c.CompressOptions(),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvInts(key string, fallback []int) ([]int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	var out []int
	for _, part := range strings.Split(val, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, i)
	}
	return out, nil
}
