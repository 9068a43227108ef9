package embedding

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/huetone/chromind/colormath"
)

// Manager holds the active embedder with thread-safe hot reload. A failed
// model load marks the manager unhealthy without stopping the process;
// callers fall back to the feature embedder.
type Manager struct {
	mu              sync.RWMutex
	currentEmbedder Embedder
	modelDirectory  string
	isHealthy       bool
	lastError       error
}

// The manager is itself an Embedder: requests delegate through Get, so a
// Reload swap takes effect on the next embed.
var _ Embedder = (*Manager)(nil)

// ModelFiles holds the resolved paths of a model directory.
type ModelFiles struct {
	ModelPath     string
	TokenizerPath string
}

// NewManager creates a manager and attempts an initial load. The manager
// is returned even when the load fails, matching server startup without
// model files present.
func NewManager(directory string) (*Manager, error) {
	m := &Manager{
		modelDirectory: directory,
		isHealthy:      false,
	}

	if err := m.Reload(directory); err != nil {
		log.Printf("[EmbeddingManager] Warning: failed to load initial model: %v", err)
		log.Printf("[EmbeddingManager] Manager created but marked as unhealthy")
	}

	return m, nil
}

// Get returns the current embedder in a thread-safe manner.
func (m *Manager) Get() (Embedder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.isHealthy {
		return nil, fmt.Errorf("embedding model is unhealthy: %w", m.lastError)
	}
	if m.currentEmbedder == nil {
		return nil, fmt.Errorf("no embedder available")
	}
	return m.currentEmbedder, nil
}

// Name implements Embedder, reporting the active backend name.
func (m *Manager) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.currentEmbedder != nil {
		return m.currentEmbedder.Name()
	}
	return "onnx_minilm"
}

// Embed implements Embedder by delegating to the current model.
func (m *Manager) Embed(ctx context.Context, point ColorPoint) ([]float32, error) {
	e, err := m.Get()
	if err != nil {
		return nil, err
	}
	return e.Embed(ctx, point)
}

// Healthy reports whether the current model loaded and validated.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isHealthy
}

// Reload loads the model from the given directory, runs a validation embed
// and swaps it in. The old embedder is closed after the swap.
func (m *Manager) Reload(newDirectory string) error {
	log.Printf("[EmbeddingManager] Reloading model from directory: %s", newDirectory)

	files, err := m.validateDirectory(newDirectory)
	if err != nil {
		m.setUnhealthy(err)
		log.Printf("[EmbeddingManager] Directory validation failed: %v", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	// Load outside the lock to minimize blocking.
	newEmbedder, err := NewONNXEmbedder(files.ModelPath, files.TokenizerPath)
	if err != nil {
		m.setUnhealthy(err)
		log.Printf("[EmbeddingManager] Failed to load model: %v", err)
		return fmt.Errorf("failed to load model: %w", err)
	}

	// Validation embed to ensure the session actually runs.
	log.Printf("[EmbeddingManager] Running validation embed")
	probe := ColorPoint{
		Color: colormath.OKLCH{L: 0.62, C: 0.12, H: 250, Alpha: 1},
		Hex:   "#3366cc",
		Name:  "validation blue",
	}
	vec, err := newEmbedder.Embed(context.Background(), probe)
	if err == nil && len(vec) != Dim {
		err = fmt.Errorf("model produced %d dimensions, want %d", len(vec), Dim)
	}
	if err != nil {
		if closeErr := newEmbedder.Close(); closeErr != nil {
			log.Printf("[EmbeddingManager] Warning: failed to close rejected embedder: %v", closeErr)
		}
		m.setUnhealthy(err)
		log.Printf("[EmbeddingManager] Validation embed failed: %v", err)
		return fmt.Errorf("validation embed failed: %w", err)
	}

	m.mu.Lock()
	old := m.currentEmbedder
	m.currentEmbedder = newEmbedder
	m.modelDirectory = newDirectory
	m.isHealthy = true
	m.lastError = nil
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			log.Printf("[EmbeddingManager] Warning: failed to close previous embedder: %v", err)
		}
	}

	log.Printf("[EmbeddingManager] Model reloaded successfully")
	return nil
}

func (m *Manager) setUnhealthy(err error) {
	m.mu.Lock()
	m.isHealthy = false
	m.lastError = err
	m.mu.Unlock()
}

// validateDirectory checks that the required model files exist.
func (m *Manager) validateDirectory(directory string) (ModelFiles, error) {
	files := ModelFiles{
		ModelPath:     filepath.Join(directory, "model_quantized.onnx"),
		TokenizerPath: filepath.Join(directory, "tokenizer.json"),
	}

	for _, path := range []string{files.ModelPath, files.TokenizerPath} {
		info, err := os.Stat(path)
		if err != nil {
			return ModelFiles{}, fmt.Errorf("required model file missing: %s", path)
		}
		if info.Size() == 0 {
			return ModelFiles{}, fmt.Errorf("required model file empty: %s", path)
		}
	}
	return files, nil
}

// Close releases the current embedder.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentEmbedder == nil {
		return nil
	}
	err := m.currentEmbedder.Close()
	m.currentEmbedder = nil
	m.isHealthy = false
	return err
}
