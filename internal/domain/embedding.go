package domain

import (
	"context"
	"fmt"
)

// MaxEmbeddingBatch is the largest number of texts the embedding service accepts per call.
const MaxEmbeddingBatch = 80

// Embedder vectorizes a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback calls Embed once per text, for providers without a native batch call.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		embeddings[i] = res.Embedding
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// SingleFromBatch adapts a BatchEmbedder to the single-text Embedder contract.
type SingleFromBatch struct {
	Batch BatchEmbedder
}

// Embed embeds one text through a one-element batch.
func (s SingleFromBatch) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := s.Batch.BatchEmbed(ctx, []string{text})
	if err != nil {
		return EmbeddingResult{}, err
	}
	if len(res.Embeddings) != 1 {
		return EmbeddingResult{}, fmt.Errorf("expected 1 embedding, got %d: %w",
			len(res.Embeddings), ErrEmbeddingProviderError)
	}
	return EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}
