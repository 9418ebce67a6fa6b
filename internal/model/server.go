package model

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/colorizer-api/internal/tensor"
)

// ServerOptions tunes NewServer.
type ServerOptions struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// library's default lookup.
	LibraryPath string
	// InputSize is used when the metadata leaves the tile size dynamic.
	InputSize int
}

// Server owns one ONNX session. The session's input and output tensors are
// reused between calls, so Predict serializes callers.
type Server struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewServer(modelPath, metadataPath string, opts ...func(o *ServerOptions)) (*Server, error) {
	opt := ServerOptions{InputSize: 256}
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}

	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: model file: %w", ErrModelUnavailable, err)
	}

	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read metadata: %w", ErrModelUnavailable, err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("%w: failed to parse metadata: %w", ErrModelUnavailable, err)
	}
	if err := metadata.resolve(opt.InputSize); err != nil {
		return nil, fmt.Errorf("%w: invalid metadata: %w", ErrModelUnavailable, err)
	}

	if opt.LibraryPath != "" {
		ort.SetSharedLibraryPath(opt.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: failed to initialize ONNX environment: %w", ErrModelUnavailable, err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create input tensor: %w", ErrModelUnavailable, err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("%w: failed to create output tensor: %w", ErrModelUnavailable, err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: failed to create ONNX session: %w", ErrModelUnavailable, err)
	}

	return &Server{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// InputSize is the side of the square tile the model accepts.
func (s *Server) InputSize() int {
	return s.Metadata.ImageSize
}

// Predict runs one tile through the model. Input and output values are in
// [0, 1].
func (s *Server) Predict(tile *tensor.Tensor) (*tensor.Tensor, error) {
	size := s.Metadata.ImageSize
	if tile.Height != size || tile.Width != size {
		return nil, fmt.Errorf("tile is %dx%d, model expects %dx%d", tile.Width, tile.Height, size, size)
	}
	if err := tile.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pack(s.inputTensor.GetData(), tile, s.Metadata.Layout)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return unpack(s.outputTensor.GetData(), size, s.Metadata.Layout), nil
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}
