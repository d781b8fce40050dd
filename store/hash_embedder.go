package store

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// HashEmbedder is a deterministic, dependency-free Embedder: it folds the
// SHA-256 digest of the input text into a fixed-size float vector. It
// carries no semantic meaning beyond "same text, same vector" and exists
// so VectorStorePostgres has a usable default outside of tests; a real
// deployment is expected to swap in an embedding-model-backed Embedder
// behind the same interface.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder builds a HashEmbedder producing vectors of length dims.
// dims <= 0 defaults to 32.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 32
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	out := make([]float32, h.dims)
	block := []byte(text)
	for i := 0; i < h.dims; i += 8 {
		sum := sha256.Sum256(append(block, byte(i)))
		for j := 0; j < 8 && i+j < h.dims; j++ {
			v := binary.BigEndian.Uint32(sum[j*4 : j*4+4])
			out[i+j] = float32(v) / float32(^uint32(0))
		}
	}
	return out, nil
}
