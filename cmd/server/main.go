package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Brownie44l1/colorizer-api/internal/colorizer"
	"github.com/Brownie44l1/colorizer-api/internal/config"
	"github.com/Brownie44l1/colorizer-api/internal/handlers"
	"github.com/Brownie44l1/colorizer-api/internal/model"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// projectPath resolves relative paths against the project root, so the
// server can be started from cmd/server as well.
func projectPath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	root, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to get working directory: %v", err)
	}
	if filepath.Base(root) == "server" {
		root = filepath.Join(root, "../..")
	}

	modelPath := projectPath(root, cfg.ModelPath)
	metadataPath := projectPath(root, cfg.MetadataPath)

	log.Printf("Loading model from: %s", modelPath)

	modelServer, err := model.NewServer(modelPath, metadataPath, func(o *model.ServerOptions) {
		o.LibraryPath = cfg.ONNXLibraryPath
		o.InputSize = cfg.ModelInputSize
	})
	if err != nil {
		log.Fatalf("Failed to initialize model server: %v", err)
	}
	defer modelServer.Close()

	c := colorizer.New(modelServer, cfg.ColorizerOptions())
	if err := c.Validate(); err != nil {
		log.Fatalf("Invalid configuration for model tile size %d: %v", modelServer.InputSize(), err)
	}
	handler := handlers.NewHandler(c, cfg.TempDir, cfg.MaxUploadBytes())

	http.HandleFunc("/health", enableCORS(handler.Health))
	http.HandleFunc("/colorize", enableCORS(handler.Colorize))

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Model input: %dx%d (%s)", modelServer.InputSize(), modelServer.InputSize(), modelServer.Metadata.Layout)
	log.Println("Endpoints:")
	log.Println("  GET  /health   - Health check")
	log.Println("  POST /colorize - Colorize an uploaded image (query: patches, compress, max_size_mb)")
	log.Printf("Upload test: curl -X POST -F \"image=@photo.jpg\" -o colorized.png http://localhost:%s/colorize", cfg.Port)

	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
