// Package embed provides the RAPTOR embedder interface, an LRU-cached
// wrapper over it, and the little-endian float32 blob codec used by the
// on-disk cache.
package embed

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"

	rerrors "github.com/raptorlabs/raptor/internal/errors"
)

// Embedder generates vector embeddings for text. It is the RAPTOR-facing
// analogue of the teacher's internal/embed.Embedder, narrowed to the
// operations the indexing and retrieval pipeline actually drives.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}

// EncodeVector serializes a float32 vector as little-endian IEEE-754
// bytes, the wire format stored in the on-disk cache snapshot.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserializes a little-endian IEEE-754 byte blob back
// into a float32 vector. A length that is not a multiple of 4 is
// malformed and reported as ErrCodeRaptorMalformedBlob.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, rerrors.NewRaptorError(
			rerrors.ErrCodeRaptorMalformedBlob,
			"embedding blob length is not a multiple of 4 bytes",
			nil,
		).WithDetail("length", strconv.Itoa(len(blob)))
	}
	n := len(blob) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
