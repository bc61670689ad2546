package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/agenthands/ctigraph/internal/config"
	"github.com/agenthands/ctigraph/internal/core/common"
	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/agenthands/ctigraph/internal/llm"
	"github.com/agenthands/ctigraph/internal/metrics"
)

// DefaultTopK is the number of chunks retrieved per category query.
const DefaultTopK = 15

// Retriever returns the chunks of a report most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, reportID, query string, k int) ([]model.SearchResult, error)
}

type Extractor struct {
	LLM        llm.LLMClient
	Retriever  Retriever
	Categories map[string]config.CategoryConfig
	TopK       int
}

func NewExtractor(llmClient llm.LLMClient, retriever Retriever, categories map[string]config.CategoryConfig, topK int) *Extractor {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Extractor{
		LLM:        llmClient,
		Retriever:  retriever,
		Categories: categories,
		TopK:       topK,
	}
}

// Extract runs every configured category against one report, in category order.
// Unparseable model output yields a result carrying model.ErrorMarker; retrieval
// and model failures abort the run.
func (e *Extractor) Extract(ctx context.Context, reportID string) ([]model.ExtractionResult, error) {
	results := make([]model.ExtractionResult, 0, len(e.Categories))
	for _, category := range model.Categories {
		cat, ok := e.Categories[category]
		if !ok {
			continue
		}
		res, err := e.ExtractCategory(ctx, reportID, category, cat)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ExtractCategory retrieves context for one category and asks the chat model for it.
func (e *Extractor) ExtractCategory(ctx context.Context, reportID, category string, cat config.CategoryConfig) (model.ExtractionResult, error) {
	docs, err := e.Retriever.Retrieve(ctx, reportID, cat.Query, e.TopK)
	if err != nil {
		return model.ExtractionResult{}, fmt.Errorf("failed to retrieve %s context: %w", category, err)
	}
	metrics.RetrievedChunks.WithLabelValues(category).Observe(float64(len(docs)))

	prompt := Render(cat.Prompt, model.ExtractionContext{Category: category, Query: cat.Query, Text: JoinContext(docs)})

	start := time.Now()
	response, err := e.LLM.Generate(ctx, prompt)
	metrics.LLMLatency.WithLabelValues(category).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExtractionResults.WithLabelValues(category, "error").Inc()
		return model.ExtractionResult{}, fmt.Errorf("failed to generate %s: %w", category, err)
	}

	response = strings.TrimSpace(response)
	data, err := common.ParseObject(response)
	if err != nil {
		log.Printf("Warning: %s response is not valid JSON: %v", category, err)
		metrics.ExtractionResults.WithLabelValues(category, "invalid").Inc()
		return model.ExtractionResult{Category: category, Error: model.ErrorMarker, Raw: response}, nil
	}

	metrics.ExtractionResults.WithLabelValues(category, "ok").Inc()
	return model.ExtractionResult{Category: category, Data: data, Raw: response}, nil
}

// JoinContext concatenates retrieved chunk texts with a single space.
func JoinContext(docs []model.SearchResult) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, " ")
}

// Render substitutes the retrieved text for the first %s of a category prompt.
// Any other percent signs are left as written.
func Render(prompt string, ec model.ExtractionContext) string {
	return strings.Replace(prompt, config.PromptPlaceholder, ec.Text, 1)
}

// Merge folds successful extraction results into one parameter set.
// Keys outside a result's own category are ignored.
func Merge(results []model.ExtractionResult) model.Parameters {
	var p model.Parameters
	for _, r := range results {
		if r.Failed() || len(r.Data) == 0 {
			continue
		}
		var part model.Parameters
		if err := json.Unmarshal(r.Data, &part); err != nil {
			log.Printf("Warning: skipping %s result: %v", r.Category, err)
			continue
		}
		switch r.Category {
		case model.CategoryThreatActors:
			p.ThreatActors = append(p.ThreatActors, part.ThreatActors...)
		case model.CategoryTTPs:
			if part.TTPs != nil {
				if p.TTPs == nil {
					p.TTPs = &model.TTPs{}
				}
				p.TTPs.Tactics = append(p.TTPs.Tactics, part.TTPs.Tactics...)
				p.TTPs.Techniques = append(p.TTPs.Techniques, part.TTPs.Techniques...)
			}
		case model.CategoryMalware:
			p.Malware = append(p.Malware, part.Malware...)
		case model.CategoryTargetedEntities:
			p.TargetedEntities = append(p.TargetedEntities, part.TargetedEntities...)
		}
	}
	return p.Normalize()
}
