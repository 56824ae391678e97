package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmbedder struct {
	calls     atomic.Int64
	batchCalls atomic.Int64
	dims      int
	model     string
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, model: "mock-model"}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	vec := make([]float32, m.dims)
	for i := range vec {
		vec[i] = float32(len(text)) + float32(i)*0.01
	}
	return vec, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = m.Embed(ctx, t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int   { return m.dims }
func (m *mockEmbedder) ModelName() string { return m.model }

func TestEncodeDecodeVector_RoundTrips(t *testing.T) {
	v := []float32{1.5, -2.25, 0, 3.125e10}
	blob := EncodeVector(v)
	require.Len(t, blob, len(v)*4)

	decoded, err := DecodeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, v, decoded)
}

func TestDecodeVector_MalformedLength_ReturnsMalformedBlobError(t *testing.T) {
	_, err := DecodeVector([]byte{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_603_RAPTOR_MALFORMED_BLOB")
}

func TestCachedEmbedder_RepeatedText_HitsCache(t *testing.T) {
	inner := newMockEmbedder(8)
	cached := NewCachedEmbedder(inner, 10)

	ctx := context.Background()
	v1, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)
	v2, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), inner.calls.Load())

	stats := cached.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestCachedEmbedder_EmbedBatch_OnlyEmbedsUncached(t *testing.T) {
	inner := newMockEmbedder(4)
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "a")
	require.NoError(t, err)

	results, err := cached.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// "a" was already cached; only "b" and "c" reach the inner batch call,
	// which the mock counts as two Embed calls on top of the first "a".
	assert.Equal(t, int64(3), inner.calls.Load())
	assert.Equal(t, int64(1), inner.batchCalls.Load())
}

func TestCachedEmbedder_Clear_ResetsStats(t *testing.T) {
	inner := newMockEmbedder(4)
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, _ = cached.Embed(ctx, "x")
	cached.Clear()

	stats := cached.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.Entries)
}

func TestDefaultEmbedder_Deterministic(t *testing.T) {
	e := NewDefaultEmbedder()
	ctx := context.Background()

	v1, err := e.Embed(ctx, "func main() {}")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "func main() {}")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, e.Dimensions(), len(v1))
}
