// Package hosted implements an embedding provider that calls a hosted
// text-embedding HTTP API, enforcing the per-string/per-batch/per-request
// token limits the OpenAI-family models impose. Grounded on the
// resty-based internal/indexer-prototype.OllamaProvider HTTP client shape
// and on original_source/models/openai_text_embed.py for the limits and
// model-dimension table.
package hosted

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cockroachdb-vectors/vectorize/internal/provider"
	"github.com/cockroachdb-vectors/vectorize/internal/store"
)

// Limits shared by text-embedding-3-small, text-embedding-3-large, and
// text-embedding-ada-002 (original_source/models/openai_text_embed.py).
const (
	PerStringTokenLimit   = 8191
	MaxBatchSize          = 2048
	TotalTokensPerRequest = 300000
)

// modelDimensions maps a known model name to its output dimension. Models
// outside this table default to 1536 (small/ada-002's dimension).
var modelDimensions = map[string]int{
	"small":   1536,
	"large":   3072,
	"ada-002": 1536,
}

const defaultBaseURL = "http://localhost:8089"

// Provider calls a hosted embedding endpoint over HTTP via resty.
type Provider struct {
	client *resty.Client
	model  string
	dim    int
}

// New constructs the hosted provider for modelID ("small", "large",
// "ada-002", or any other string, which defaults to the small dimension).
// The endpoint base URL comes from EMBEDDING_API_URL, defaulting to
// defaultBaseURL, mirroring the OLLAMA_URL env-var convention this package
// is grounded on.
func New(modelID string) (provider.Provider, error) {
	base := os.Getenv("EMBEDDING_API_URL")
	if base == "" {
		base = defaultBaseURL
	}
	dim, ok := modelDimensions[modelID]
	if !ok {
		dim = modelDimensions["small"]
	}
	client := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetTimeout(2 * time.Minute)

	return &Provider{client: client, model: modelID, dim: dim}, nil
}

func (p *Provider) ID() string     { return "hosted/" + p.model }
func (p *Provider) Label() string  { return "Hosted Text Embedding API (" + p.model + ")" }
func (p *Provider) Dimension() int { return p.dim }

func (p *Provider) Description() string {
	return "General-purpose text embedding model served by a hosted API. " +
		"Produces fixed-length dense float vectors; dimensionality depends " +
		"on the selected model. " + fmt.Sprintf("limits: %d tokens/string, %d rows/batch, %d tokens/request", PerStringTokenLimit, MaxBatchSize, TotalTokensPerRequest)
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedDatum struct {
	Embedding []float64 `json:"embedding"`
}

type embedResponse struct {
	Data []embedDatum `json:"data"`
}

// estimateTokens approximates tiktoken's BPE count with a byte/4 heuristic
// (no tiktoken equivalent ships for Go; documented in DESIGN.md).
func estimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		n = 1
	}
	return n
}

// EncodeOne embeds a single string, enforcing the per-string token limit.
func (p *Provider) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	if n := estimateTokens(text); n > PerStringTokenLimit {
		return nil, fmt.Errorf("input has ~%d tokens: %w", n, provider.ErrInputTooLarge)
	}
	vecs, err := p.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("hosted provider returned no embeddings")
	}
	return vecs[0], nil
}

// EncodeBatch embeds rows, enforcing batch-size and total-token limits
// before making a single request, matching
// original_source/models/openai_text_embed.py:embedding_encode_batch.
func (p *Provider) EncodeBatch(ctx context.Context, batchIndex int, rows []store.TextRow, verbose bool) ([]provider.EncodedRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > MaxBatchSize {
		return nil, fmt.Errorf("batch has %d rows: %w", len(rows), provider.ErrBatchTooLarge)
	}

	texts := make([]string, len(rows))
	total := 0
	for i, r := range rows {
		n := estimateTokens(r.Text)
		if n > PerStringTokenLimit {
			return nil, fmt.Errorf("row %v has ~%d tokens: %w", r.Key, n, provider.ErrInputTooLarge)
		}
		total += n
		if total > TotalTokensPerRequest {
			return nil, fmt.Errorf("batch %d has ~%d tokens: %w", batchIndex, total, provider.ErrBudgetExceeded)
		}
		texts[i] = r.Text
	}

	vecs, err := p.call(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(rows) {
		return nil, fmt.Errorf("hosted provider returned %d embeddings for %d rows", len(vecs), len(rows))
	}

	out := make([]provider.EncodedRow, len(rows))
	for i, r := range rows {
		out[i] = provider.EncodedRow{Key: r.Key, Vector: vecs[i]}
	}
	return out, nil
}

func (p *Provider) call(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embedRequest{Model: p.model, Input: texts}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&reqBody).
		SetResult(&embedResponse{}).
		Post("/v1/embeddings")
	if err != nil {
		return nil, fmt.Errorf("hosted embedding request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("hosted embedding status %d: %s", resp.StatusCode(), resp.String())
	}

	result := resp.Result().(*embedResponse)
	out := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}
