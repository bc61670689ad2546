package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/ctigraph/internal/chunker"
	"github.com/agenthands/ctigraph/internal/config"
	"github.com/agenthands/ctigraph/internal/core/community"
	"github.com/agenthands/ctigraph/internal/core/extraction"
	"github.com/agenthands/ctigraph/internal/core/graph"
	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/agenthands/ctigraph/internal/driver"
	"github.com/agenthands/ctigraph/internal/ioc"
	"github.com/agenthands/ctigraph/internal/llm"
	"github.com/agenthands/ctigraph/internal/metrics"
	"github.com/agenthands/ctigraph/internal/parser"
	"github.com/agenthands/ctigraph/internal/publish"
	"github.com/agenthands/ctigraph/internal/retrieval"
)

var (
	ErrEmptyReport = errors.New("report contains no text")
	// ErrNoGraph is returned by graph operations when no database is connected.
	ErrNoGraph = errors.New("no graph database configured")
)

// ReportStore holds chunked reports and serves vector search over them.
type ReportStore interface {
	retrieval.Searcher
	AddReport(ctx context.Context, report model.Report, chunks []model.Chunk) error
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ReportText(ctx context.Context, id string) ([]string, error)
	DeleteReport(ctx context.Context, id string) error
}

// KeywordIndex is an optional full-text index kept in step with the ReportStore.
type KeywordIndex interface {
	retrieval.KeywordSearcher
	AddChunks(reportID string, chunks []model.Chunk) error
	DeleteReport(ctx context.Context, reportID string) error
}

type ThreatGraph struct {
	Loader      *graph.Loader
	Embedder    llm.EmbedderClient
	Store       ReportStore
	Keywords    KeywordIndex
	Retriever   *retrieval.Retriever
	Extractor   *extraction.Extractor
	Chunker     *chunker.Chunker
	Publisher   publish.Publisher
	ExtractIoCs bool
}

// NewThreatGraph wires the pipeline. A nil driver gives an offline graph that can
// ingest, extract and build statements but returns ErrNoGraph for anything that
// touches the database.
func NewThreatGraph(d driver.GraphDriver, llmClient llm.LLMClient, embedder llm.EmbedderClient, store ReportStore, pub publish.Publisher, cfg *config.Config) *ThreatGraph {
	var reranker llm.RerankerClient
	if cfg.Retrieval.Rerank {
		reranker = llm.NewSimpleLLMReranker(llmClient)
	}
	if pub == nil {
		pub = publish.Nop{}
	}
	retriever := retrieval.NewRetriever(embedder, store, reranker)
	var loader *graph.Loader
	if d != nil {
		loader = graph.NewLoader(d)
	}

	return &ThreatGraph{
		Loader:      loader,
		Embedder:    embedder,
		Store:       store,
		Retriever:   retriever,
		Extractor:   extraction.NewExtractor(llmClient, retriever, cfg.Extraction.Categories, cfg.Retrieval.TopK),
		Chunker:     chunker.New(chunker.Config{MaxTokens: cfg.Chunking.MaxTokens, Overlap: cfg.Chunking.Overlap}),
		Publisher:   pub,
		ExtractIoCs: cfg.Extraction.ExtractIoCs,
	}
}

// UseKeywordIndex turns on hybrid retrieval. Reports ingested earlier are not backfilled.
func (g *ThreatGraph) UseKeywordIndex(k KeywordIndex) {
	g.Keywords = k
	g.Retriever.Keywords = k
}

func (g *ThreatGraph) BuildIndices(ctx context.Context) error {
	if g.Loader == nil {
		return nil
	}
	return g.Loader.EnsureSchema(ctx)
}

// IngestReport chunks and embeds a parsed report and stores it under a new ID.
func (g *ThreatGraph) IngestReport(ctx context.Context, name, format string, sections []parser.Section) (*model.Report, error) {
	if g.Embedder == nil {
		return nil, fmt.Errorf("no embedding client configured")
	}

	chunks := g.Chunker.Split(sections)
	if len(chunks) == 0 {
		return nil, ErrEmptyReport
	}

	report := model.Report{
		ID:        uuid.New().String(),
		Name:      name,
		Format:    format,
		CreatedAt: time.Now().UTC(),
		Chunks:    len(chunks),
	}

	for i := range chunks {
		vec, err := g.Embedder.Embed(ctx, chunks[i].Content)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d of %s: %w", i, name, err)
		}
		chunks[i].ReportID = report.ID
		chunks[i].Embedding = vec
	}

	if err := g.Store.AddReport(ctx, report, chunks); err != nil {
		return nil, fmt.Errorf("failed to store report %s: %w", name, err)
	}
	if g.Keywords != nil {
		if err := g.Keywords.AddChunks(report.ID, chunks); err != nil {
			log.Printf("Warning: keyword indexing failed for %s: %v", report.ID, err)
		}
	}
	metrics.ReportsIngested.Inc()
	log.Printf("Ingested report %s (%s) as %s: %d chunks", name, format, report.ID, len(chunks))
	return &report, nil
}

// IngestText ingests raw text, splitting sections at markdown headings.
func (g *ThreatGraph) IngestText(ctx context.Context, name, text string) (*model.Report, error) {
	res := parser.FromText(text)
	return g.IngestReport(ctx, name, "txt", res.Sections)
}

// DeleteReport removes a report and its chunks. Graph nodes are kept, since
// other reports may have produced them.
func (g *ThreatGraph) DeleteReport(ctx context.Context, reportID string) error {
	if err := g.Store.DeleteReport(ctx, reportID); err != nil {
		return err
	}
	if g.Keywords != nil {
		if err := g.Keywords.DeleteReport(ctx, reportID); err != nil {
			log.Printf("Warning: keyword index cleanup failed for %s: %v", reportID, err)
		}
	}
	return nil
}

// Analysis is everything produced for one report.
type Analysis struct {
	Report     *model.Report            `json:"report"`
	Results    []model.ExtractionResult `json:"results"`
	Parameters model.Parameters         `json:"parameters"`
	Statement  *graph.Statement         `json:"statement,omitempty"`
	Load       *graph.LoadResult        `json:"load,omitempty"`
	// Skipped explains why no statement could be built.
	Skipped string `json:"skipped,omitempty"`
}

// FailedCategories lists the categories whose model output could not be parsed.
func (a *Analysis) FailedCategories() []string {
	var out []string
	for _, r := range a.Results {
		if r.Failed() {
			out = append(out, r.Category)
		}
	}
	return out
}

// Analyze extracts entities from a stored report, builds the load statement and,
// when load is set, writes it to the graph.
func (g *ThreatGraph) Analyze(ctx context.Context, reportID string, load bool) (*Analysis, error) {
	report, err := g.Store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	results, err := g.Extractor.Extract(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for report %s: %w", reportID, err)
	}

	params := extraction.Merge(results)
	if g.ExtractIoCs {
		texts, err := g.Store.ReportText(ctx, reportID)
		if err != nil {
			return nil, fmt.Errorf("failed to read report %s: %w", reportID, err)
		}
		params.IoCs = ioc.Merge(params.IoCs, ioc.Extract(strings.Join(texts, "\n")))
		params = params.Normalize()
	}

	analysis := &Analysis{Report: report, Results: results, Parameters: params}

	stmt, err := graph.Build(params)
	switch {
	case graph.IsValidationError(err):
		log.Printf("Warning: nothing to load for report %s: %v", reportID, err)
		analysis.Skipped = err.Error()
	case err != nil:
		return nil, err
	default:
		analysis.Statement = stmt
	}

	if load && analysis.Statement != nil {
		res, err := g.Load(ctx, params)
		if err != nil {
			return nil, err
		}
		analysis.Load = res
	}

	g.publish(ctx, analysis)
	return analysis, nil
}

// ProcessReport ingests and analyzes in one step.
func (g *ThreatGraph) ProcessReport(ctx context.Context, name, format string, sections []parser.Section, load bool) (*Analysis, error) {
	report, err := g.IngestReport(ctx, name, format, sections)
	if err != nil {
		return nil, err
	}
	return g.Analyze(ctx, report.ID, load)
}

// Load writes caller-supplied parameters straight to the graph.
func (g *ThreatGraph) Load(ctx context.Context, p model.Parameters) (*graph.LoadResult, error) {
	if g.Loader == nil {
		return nil, ErrNoGraph
	}
	return g.Loader.Load(ctx, p)
}

// Query returns the statement Load would execute, without running it.
func (g *ThreatGraph) Query(p model.Parameters) (*graph.Statement, error) {
	return graph.Build(p)
}

func (g *ThreatGraph) ActorProfile(ctx context.Context, name string) (*graph.Profile, error) {
	if g.Loader == nil {
		return nil, ErrNoGraph
	}
	return g.Loader.ActorProfile(ctx, name)
}

func (g *ThreatGraph) ActorClusters(ctx context.Context, minShared int) ([]community.Cluster, error) {
	if g.Loader == nil {
		return nil, ErrNoGraph
	}
	return g.Loader.ActorClusters(ctx, minShared)
}

func (g *ThreatGraph) Stats(ctx context.Context) (map[string]int64, error) {
	if g.Loader == nil {
		return nil, ErrNoGraph
	}
	return g.Loader.Stats(ctx)
}

// publish failures are logged; the analysis itself has already succeeded.
func (g *ThreatGraph) publish(ctx context.Context, a *Analysis) {
	ev := publish.Event{
		ReportID:    a.Report.ID,
		ReportName:  a.Report.Name,
		AnalyzedAt:  time.Now().UTC(),
		Parameters:  a.Parameters,
		Loaded:      a.Load != nil,
		FailedCount: len(a.FailedCategories()),
	}
	if a.Statement != nil {
		ev.Query = a.Statement.Query
	}
	if err := g.Publisher.Publish(ctx, ev); err != nil {
		log.Printf("Warning: %v", err)
	}
}
