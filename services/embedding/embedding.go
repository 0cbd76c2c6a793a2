// Package embedding turns text into fixed-size dense vectors by calling a
// remote model service.
package embedding

import (
	"context"
	"math"
)

// Embedder produces vectors for text. Implementations are safe for
// concurrent use.
type Embedder interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// Model is the model name reported to API callers
	Model() string

	// Dimensions is the length of every returned vector
	Dimensions() int

	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Health reports whether the backend is reachable
	Health(ctx context.Context) error
}

// Normalize scales v to unit L2 norm. A zero vector is returned unchanged.
// The input slice is not modified.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	copy(out, v)
	if sum == 0 {
		return out
	}

	norm := math.Sqrt(sum)
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}
