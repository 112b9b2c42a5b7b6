package hosted

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb-vectors/vectorize/internal/provider"
	"github.com/cockroachdb-vectors/vectorize/internal/store"
	"github.com/stretchr/testify/require"
)

func startFakeServer(t *testing.T, dim int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embedResponse{Data: make([]embedDatum, len(req.Input))}
		for i := range req.Input {
			vec := make([]float64, dim)
			for j := range vec {
				vec[j] = float64(i + j)
			}
			resp.Data[i] = embedDatum{Embedding: vec}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, srv *httptest.Server, model string) *Provider {
	t.Setenv("EMBEDDING_API_URL", srv.URL)
	p, err := New(model)
	require.NoError(t, err)
	return p.(*Provider)
}

func TestEncodeOne_Success(t *testing.T) {
	srv := startFakeServer(t, 1536)
	p := newTestProvider(t, srv, "small")

	v, err := p.EncodeOne(context.Background(), "hello world")
	require.NoError(t, err)
	require.Len(t, v, 1536)
}

func TestEncodeOne_InputTooLarge(t *testing.T) {
	srv := startFakeServer(t, 1536)
	p := newTestProvider(t, srv, "small")

	huge := strings.Repeat("a", (PerStringTokenLimit+10)*4)
	_, err := p.EncodeOne(context.Background(), huge)
	require.Error(t, err)
	require.True(t, errors.Is(err, provider.ErrInputTooLarge))
}

func TestEncodeBatch_BatchTooLarge(t *testing.T) {
	srv := startFakeServer(t, 1536)
	p := newTestProvider(t, srv, "small")

	rows := make([]store.TextRow, MaxBatchSize+1)
	for i := range rows {
		rows[i] = store.TextRow{Key: i, Text: "x"}
	}
	_, err := p.EncodeBatch(context.Background(), 0, rows, false)
	require.Error(t, err)
	require.True(t, errors.Is(err, provider.ErrBatchTooLarge))
}

func TestEncodeBatch_TotalTokenBudgetExceeded(t *testing.T) {
	srv := startFakeServer(t, 1536)
	p := newTestProvider(t, srv, "small")

	text := strings.Repeat("a", 4*(PerStringTokenLimit-1))
	rows := make([]store.TextRow, TotalTokensPerRequest/(PerStringTokenLimit-1)+2)
	for i := range rows {
		rows[i] = store.TextRow{Key: i, Text: text}
	}
	_, err := p.EncodeBatch(context.Background(), 0, rows, false)
	require.Error(t, err)
	require.True(t, errors.Is(err, provider.ErrBudgetExceeded))
}

func TestEncodeBatch_Success(t *testing.T) {
	srv := startFakeServer(t, 3072)
	p := newTestProvider(t, srv, "large")

	rows := []store.TextRow{
		{Key: "a", Text: "foo"},
		{Key: "b", Text: "bar"},
	}
	out, err := p.EncodeBatch(context.Background(), 1, rows, false)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].Key)
	require.Equal(t, "b", out[1].Key)
	require.Len(t, out[0].Vector, 3072)
}

func TestDimension_ByModel(t *testing.T) {
	srv := startFakeServer(t, 1536)
	require.Equal(t, 1536, newTestProvider(t, srv, "small").Dimension())
	require.Equal(t, 3072, newTestProvider(t, srv, "large").Dimension())
	require.Equal(t, 1536, newTestProvider(t, srv, "ada-002").Dimension())
	require.Equal(t, 1536, newTestProvider(t, srv, "unknown-model").Dimension())
}
