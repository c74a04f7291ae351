package embedders

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingEmbedder struct{ model string }

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("upstream unavailable")
}
func (f *failingEmbedder) Model() string  { return f.model }
func (f *failingEmbedder) Dimension() int { return DimensionForModel(f.model) }
func (f *failingEmbedder) Close() error   { return nil }

func TestDimensionForModel(t *testing.T) {
	assert.Equal(t, 1536, DimensionForModel("text-embedding-ada-002"))
	assert.Equal(t, 768, DimensionForModel("text-embedding-3-small"))
	assert.Equal(t, 768, DimensionForModel("anything-else"))
}

func TestFallbackEmbedder_NoCredential(t *testing.T) {
	f := NewFallbackEmbedder(nil, "text-embedding-ada-002")

	vector, degraded, err := f.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, degraded)
	require.Len(t, vector, 1536)
	for _, v := range vector {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestFallbackEmbedder_UpstreamFailure(t *testing.T) {
	f := NewFallbackEmbedder(&failingEmbedder{model: "custom-model"}, "")

	vector, degraded, err := f.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Len(t, vector, 768)
}

func TestFallbackEmbedder_PassThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3],"index":0}]}`))
	}))
	defer server.Close()

	inner, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", Host: server.URL})
	require.NoError(t, err)

	f := NewFallbackEmbedder(inner, "")
	vector, degraded, err := f.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}
