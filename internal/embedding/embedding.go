// Package embedding defines the C2 embedding port: the boundary
// between the engine's pure pipeline stages and whatever model serves
// vector embeddings.
package embedding

import "context"

// Embedder turns text into a fixed-dimensionality vector. Callers may
// batch multiple texts in one call; implementations should do so
// against the underlying model where that is cheaper than one request
// per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimensions() int
}
