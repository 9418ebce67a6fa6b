package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/Brownie44l1/colorizer-api/internal/colorizer"
	"github.com/Brownie44l1/colorizer-api/internal/imageio"
)

// formOverhead is allowed on top of the upload limit for multipart framing.
const formOverhead = 64 << 10

type Handler struct {
	colorizer *colorizer.Colorizer
	tempDir   string
	maxUpload int64
}

func NewHandler(c *colorizer.Colorizer, tempDir string, maxUpload int64) *Handler {
	return &Handler{
		colorizer: c,
		tempDir:   tempDir,
		maxUpload: maxUpload,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":       "healthy",
		"model_loaded": h.colorizer.Ready(),
	})
}

// Colorize accepts a multipart upload in the "image" field and responds with
// the colorized image, PNG unless the format query parameter asks for JPEG.
func (h *Handler) Colorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.colorizer.Ready() {
		http.Error(w, "Colorization model not loaded", http.StatusServiceUnavailable)
		return
	}

	opts, err := requestOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ext, format, err := responseFormat(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("Upload exceeds maximum of %d bytes", h.maxUpload), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	log.Printf("Received file: %s, size: %d bytes", header.Filename, header.Size)

	if err := imageio.ValidateUpload(header.Filename, header.Size, h.maxUpload, file); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inputPath, err := h.store(file, header)
	if err != nil {
		log.Printf("Upload error: %v", err)
		http.Error(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(inputPath); err != nil {
			log.Printf("warning: failed to clean up %s: %v", inputPath, err)
		}
	}()

	img, err := h.colorizer.Colorize(inputPath, opts...)
	switch {
	case err == nil:
	case imageio.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, colorizer.ErrModelNotLoaded):
		http.Error(w, "Colorization model not loaded", http.StatusServiceUnavailable)
		return
	default:
		log.Printf("Colorization error: %v", err)
		http.Error(w, "Colorization failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", imageio.ContentType(ext))
	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(imageio.OutputQuality)); err != nil {
		log.Printf("Response encoding error: %v", err)
	}
}

// store copies the validated upload to input_<uuid><ext> in the temp dir.
func (h *Handler) store(file multipart.File, header *multipart.FileHeader) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	if err := os.MkdirAll(h.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(h.tempDir, "input_"+uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func responseFormat(r *http.Request) (string, imaging.Format, error) {
	ext := "." + strings.ToLower(r.URL.Query().Get("format"))
	if ext == "." {
		ext = ".png"
	}
	format, err := imaging.FormatFromExtension(ext)
	if err == nil && (format == imaging.JPEG || format == imaging.PNG) {
		return ext, format, nil
	}
	return "", 0, fmt.Errorf("invalid format %q: %w", ext[1:], imageio.ErrUnsupportedOutput)
}

// requestOptions maps the patches, compress and max_size_mb query
// parameters onto colorizer request options.
func requestOptions(r *http.Request) ([]func(*colorizer.Request), error) {
	q := r.URL.Query()
	var opts []func(*colorizer.Request)

	if v := q.Get("patches"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid patches value %q", v)
		}
		if !on {
			opts = append(opts, colorizer.WithoutPatches())
		}
	}
	if v := q.Get("compress"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid compress value %q", v)
		}
		if !on {
			opts = append(opts, colorizer.WithoutCompression())
		}
	}
	if v := q.Get("max_size_mb"); v != "" {
		mb, err := strconv.ParseFloat(v, 64)
		if err != nil || mb <= 0 {
			return nil, fmt.Errorf("invalid max_size_mb value %q", v)
		}
		opts = append(opts, colorizer.WithMaxSizeMB(mb))
	}
	return opts, nil
}
