package retrieval

import (
	"context"
	"fmt"
	"log"

	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/agenthands/ctigraph/internal/llm"
)

// Searcher is the vector index the retriever reads from.
type Searcher interface {
	VectorSearch(ctx context.Context, reportID string, embedding []float32, k int) ([]model.SearchResult, error)
}

// KeywordSearcher is a full-text index over the same chunks.
type KeywordSearcher interface {
	Search(ctx context.Context, reportID, query string, k int) ([]model.SearchResult, error)
}

// Retriever finds the chunks of one report that are closest to a query.
// With Keywords set, vector and keyword hits are fused by reciprocal rank.
type Retriever struct {
	Embedder llm.EmbedderClient
	Index    Searcher
	Keywords KeywordSearcher
	Reranker llm.RerankerClient
}

func NewRetriever(embedder llm.EmbedderClient, index Searcher, reranker llm.RerankerClient) *Retriever {
	return &Retriever{Embedder: embedder, Index: index, Reranker: reranker}
}

// Retrieve returns at most k chunks of the report, best match first.
func (r *Retriever) Retrieve(ctx context.Context, reportID, query string, k int) ([]model.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if r.Embedder == nil {
		return nil, fmt.Errorf("retriever has no embedding client")
	}

	vec, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.Index.VectorSearch(ctx, reportID, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	if r.Keywords != nil {
		hits, err := r.Keywords.Search(ctx, reportID, query, k)
		if err != nil {
			log.Printf("Warning: keyword search failed, using vector results only: %v", err)
		} else {
			results = fuseRRF(results, hits, k)
		}
	}

	if r.Reranker == nil || len(results) < 2 {
		return results, nil
	}

	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = res.Content
	}
	order, err := r.Reranker.Rank(ctx, query, docs)
	if err != nil {
		log.Printf("Warning: rerank failed, keeping vector order: %v", err)
		return results, nil
	}
	return reorder(results, order), nil
}

// reorder applies a ranking, ignoring out-of-range and repeated indices and
// appending anything the ranking left out.
func reorder(results []model.SearchResult, order []int) []model.SearchResult {
	out := make([]model.SearchResult, 0, len(results))
	used := make([]bool, len(results))
	for _, idx := range order {
		if idx < 0 || idx >= len(results) || used[idx] {
			continue
		}
		used[idx] = true
		out = append(out, results[idx])
	}
	for i, res := range results {
		if !used[i] {
			out = append(out, res)
		}
	}
	return out
}
