// Package local implements a deterministic, in-process embedding provider.
// It stands in for original_source/models/sentence_transformer.py, which
// loads a real sentence-transformer model once per process and keeps it
// warm across calls. This port has no ML runtime available in Go, so it
// produces a stable 384-dimension vector per input by hashing character
// n-grams — same dimensionality and "no per-item token limit beyond
// memory" contract as the original, not a faithful semantic embedding.
package local

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/cockroachdb-vectors/vectorize/internal/provider"
	"github.com/cockroachdb-vectors/vectorize/internal/store"
)

// Dimension matches sentence-transformers/all-MiniLM-L6-v2, the model
// original_source/models/sentence_transformer.py defaults to.
const Dimension = 384

const ngramSize = 3

// Provider is a single-process deterministic text encoder.
type Provider struct {
	id   string
	once sync.Once
}

// New constructs the local provider for modelID. Model weights are not
// actually loaded; modelID only affects ID()/Label().
func New(modelID string) (provider.Provider, error) {
	return &Provider{id: "local/" + modelID}, nil
}

func (p *Provider) ID() string          { return p.id }
func (p *Provider) Label() string       { return p.id }
func (p *Provider) Dimension() int      { return Dimension }
func (p *Provider) Description() string {
	return "in-process deterministic hash embedding, " +
		"stand-in for a local sentence-transformer model (no external weights)"
}

// EncodeOne hashes text into a deterministic unit-ish vector. p.once is a
// sync.Once no-op retained because the original keeps a single cached
// model instance across calls; here it guards nothing but marks the
// load-once lifecycle.
func (p *Provider) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	p.once.Do(func() {})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return hashEmbed(text), nil
}

// EncodeBatch encodes each row independently; the local provider has no
// batch-size or token limit, so verbose just logs nothing here — per-row
// logging lives in the caller (internal/worker), which has the logger.
func (p *Provider) EncodeBatch(ctx context.Context, batchIndex int, rows []store.TextRow, verbose bool) ([]provider.EncodedRow, error) {
	out := make([]provider.EncodedRow, 0, len(rows))
	for _, r := range rows {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		vec, err := p.EncodeOne(ctx, r.Text)
		if err != nil {
			return nil, err
		}
		out = append(out, provider.EncodedRow{Key: r.Key, Vector: vec})
	}
	return out, nil
}

// hashEmbed turns text into Dimension floats in [-1, 1] by hashing
// overlapping n-grams into buckets and accumulating signed hits, then
// normalizing — a cheap, deterministic, reproducible stand-in embedding.
func hashEmbed(text string) []float32 {
	vec := make([]float32, Dimension)
	if len(text) == 0 {
		return vec
	}
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		end := i + ngramSize
		if end > len(runes) {
			end = len(runes)
		}
		gram := string(runes[i:end])

		h := fnv.New32a()
		_, _ = h.Write([]byte(gram))
		sum := h.Sum32()

		bucket := int(sum % uint32(Dimension))
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1.0)
	for n := norm; n > 1; n /= 4 {
		scale /= 2
	}
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
