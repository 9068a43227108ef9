package embedding

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/daulet/tokenizers"
	onnxruntime "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a MiniLM-class sentence encoder over the color's
// textual description with a local quantized ONNX model. Output dimension
// must be 384 (the MiniLM hidden size).
type ONNXEmbedder struct {
	tokenizer    *tokenizers.Tokenizer
	session      *onnxruntime.AdvancedSession
	inputTensor  *onnxruntime.Tensor[int64]
	maskTensor   *onnxruntime.Tensor[int64]
	outputTensor *onnxruntime.Tensor[float32]
	modelPath    string
}

const onnxMaxSeqLen = 256

// NewONNXEmbedder creates the embedder. The ONNX session is initialized
// lazily on first use so construction stays cheap.
func NewONNXEmbedder(modelPath string, tokenizerPath string) (*ONNXEmbedder, error) {
	// Resolve the shared library. Environment variable wins, then the
	// conventional build locations.
	onnxLibPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	if onnxLibPath == "" {
		candidates := []string{
			"./libonnxruntime.so",
			"./build/libonnxruntime.so",
			"./libonnxruntime.dylib",
			"./build/libonnxruntime.dylib",
		}
		for _, path := range candidates {
			if _, err := os.Stat(path); err == nil {
				onnxLibPath = path
				break
			}
		}
	}
	if onnxLibPath != "" {
		onnxruntime.SetSharedLibraryPath(onnxLibPath)
	}

	if !onnxruntime.IsInitialized() {
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
		}
	}

	tk, err := tokenizers.FromFile(tokenizerPath)
	if err != nil {
		if destroyErr := onnxruntime.DestroyEnvironment(); destroyErr != nil {
			fmt.Printf("Warning: failed to destroy environment during cleanup: %v\n", destroyErr)
		}
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	return &ONNXEmbedder{
		tokenizer: tk,
		modelPath: modelPath,
	}, nil
}

// Name implements Embedder.
func (e *ONNXEmbedder) Name() string { return "onnx_minilm" }

// Embed implements Embedder. It encodes a short sentence built from the
// color's metadata and mean-pools the token embeddings.
func (e *ONNXEmbedder) Embed(_ context.Context, point ColorPoint) ([]float32, error) {
	if e.session == nil {
		if err := e.initializeSession(); err != nil {
			return nil, fmt.Errorf("failed to initialize session: %w", err)
		}
	}

	text := point.Name
	if point.Description != "" {
		text += ": " + point.Description
	}
	if text == "" {
		text = point.Hex
	}

	encoding := e.tokenizer.EncodeWithOptions(text, true)
	tokenIDs := encoding.IDs
	if len(tokenIDs) > onnxMaxSeqLen {
		tokenIDs = tokenIDs[:onnxMaxSeqLen]
	}

	inputIDs := make([]int64, len(tokenIDs))
	attentionMask := make([]int64, len(tokenIDs))
	for i := range tokenIDs {
		inputIDs[i] = int64(tokenIDs[i])
		attentionMask[i] = 1
	}

	e.updateInputTensors(inputIDs, attentionMask)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	return e.meanPool(len(tokenIDs)), nil
}

// meanPool averages the hidden states of the attended tokens and
// L2-normalizes the result.
func (e *ONNXEmbedder) meanPool(numTokens int) []float32 {
	outputData := e.outputTensor.GetData()

	pooled := make([]float32, Dim)
	if numTokens == 0 {
		return pooled
	}

	for i := 0; i < numTokens; i++ {
		start := i * Dim
		end := start + Dim
		if end > len(outputData) {
			break
		}
		for j, x := range outputData[start:end] {
			pooled[j] += x
		}
	}

	inv := 1.0 / float32(numTokens)
	var sum float64
	for j := range pooled {
		pooled[j] *= inv
		sum += float64(pooled[j]) * float64(pooled[j])
	}
	if sum > 0 {
		norm := float32(1.0 / math.Sqrt(sum))
		for j := range pooled {
			pooled[j] *= norm
		}
	}
	return pooled
}

// initializeSession creates the ONNX session and its tensors.
func (e *ONNXEmbedder) initializeSession() error {
	batchSize := int64(1)
	inputShape := onnxruntime.NewShape(batchSize, int64(onnxMaxSeqLen))

	inputTensor, err := onnxruntime.NewTensor(inputShape, make([]int64, onnxMaxSeqLen))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}

	maskTensor, err := onnxruntime.NewTensor(inputShape, make([]int64, onnxMaxSeqLen))
	if err != nil {
		if destroyErr := inputTensor.Destroy(); destroyErr != nil {
			fmt.Printf("Warning: failed to destroy input tensor during cleanup: %v\n", destroyErr)
		}
		return fmt.Errorf("failed to create mask tensor: %w", err)
	}

	outputShape := onnxruntime.NewShape(batchSize, int64(onnxMaxSeqLen), int64(Dim))
	outputTensor, err := onnxruntime.NewEmptyTensor[float32](outputShape)
	if err != nil {
		if destroyErr := inputTensor.Destroy(); destroyErr != nil {
			fmt.Printf("Warning: failed to destroy input tensor during cleanup: %v\n", destroyErr)
		}
		if destroyErr := maskTensor.Destroy(); destroyErr != nil {
			fmt.Printf("Warning: failed to destroy mask tensor during cleanup: %v\n", destroyErr)
		}
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := onnxruntime.NewAdvancedSession(e.modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"last_hidden_state"},
		[]onnxruntime.Value{inputTensor, maskTensor},
		[]onnxruntime.Value{outputTensor},
		nil)
	if err != nil {
		if destroyErr := inputTensor.Destroy(); destroyErr != nil {
			fmt.Printf("Warning: failed to destroy input tensor during cleanup: %v\n", destroyErr)
		}
		if destroyErr := maskTensor.Destroy(); destroyErr != nil {
			fmt.Printf("Warning: failed to destroy mask tensor during cleanup: %v\n", destroyErr)
		}
		if destroyErr := outputTensor.Destroy(); destroyErr != nil {
			fmt.Printf("Warning: failed to destroy output tensor during cleanup: %v\n", destroyErr)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	e.session = session
	e.inputTensor = inputTensor
	e.maskTensor = maskTensor
	e.outputTensor = outputTensor
	return nil
}

// updateInputTensors clears and refills the input tensors.
func (e *ONNXEmbedder) updateInputTensors(inputIDs, attentionMask []int64) {
	inputData := e.inputTensor.GetData()
	maskData := e.maskTensor.GetData()

	for i := range inputData {
		inputData[i] = 0
		maskData[i] = 0
	}
	copy(inputData, inputIDs)
	copy(maskData, attentionMask)
}

// Close implements Embedder, releasing tensors, the session, the tokenizer
// and the runtime environment.
func (e *ONNXEmbedder) Close() error {
	var errs []error

	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy session: %w", err))
		}
	}
	if e.inputTensor != nil {
		if err := e.inputTensor.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy input tensor: %w", err))
		}
	}
	if e.maskTensor != nil {
		if err := e.maskTensor.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy mask tensor: %w", err))
		}
	}
	if e.outputTensor != nil {
		if err := e.outputTensor.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy output tensor: %w", err))
		}
	}
	if e.tokenizer != nil {
		if err := e.tokenizer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close tokenizer: %w", err))
		}
	}
	if err := onnxruntime.DestroyEnvironment(); err != nil {
		errs = append(errs, fmt.Errorf("failed to destroy environment: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
