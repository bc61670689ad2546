// Package keyword keeps a full-text index of report chunks next to the vector store.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/agenthands/ctigraph/internal/core/model"
)

type document struct {
	ReportID string `json:"report_id"`
	Position int    `json:"position"`
	Heading  string `json:"heading"`
	Content  string `json:"content"`
}

type Index struct {
	idx bleve.Index
}

func newMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("report_id", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("position", bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt("heading", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("content", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Open opens the index at path, creating it when missing. An empty path gives
// an in-memory index.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("creating in-memory index: %w", err)
		}
		return &Index{idx: idx}, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		log.Printf("Creating keyword index at %s", path)
		idx, err = bleve.New(path, newMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening keyword index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

func (i *Index) Close() error {
	return i.idx.Close()
}

func docID(reportID string, position int) string {
	return fmt.Sprintf("%s:%d", reportID, position)
}

// AddChunks indexes the chunks of one report in a single batch.
func (i *Index) AddChunks(reportID string, chunks []model.Chunk) error {
	batch := i.idx.NewBatch()
	for _, c := range chunks {
		doc := document{ReportID: reportID, Position: c.Position, Heading: c.Heading, Content: c.Content}
		if err := batch.Index(docID(reportID, c.Position), doc); err != nil {
			return fmt.Errorf("indexing chunk %d: %w", c.Position, err)
		}
	}
	return i.idx.Batch(batch)
}

// Search returns the k chunks of a report that best match query.
func (i *Index) Search(ctx context.Context, reportID, query string, k int) ([]model.SearchResult, error) {
	report := bleve.NewTermQuery(reportID)
	report.SetField("report_id")
	match := bleve.NewMatchQuery(query)
	match.SetField("content")

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(report, match), k, 0, false)
	req.Fields = []string{"position", "heading", "content"}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	results := make([]model.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := model.SearchResult{ReportID: reportID, Score: hit.Score}
		if v, ok := hit.Fields["position"].(float64); ok {
			r.Position = int(v)
		}
		r.Heading, _ = hit.Fields["heading"].(string)
		r.Content, _ = hit.Fields["content"].(string)
		results = append(results, r)
	}
	return results, nil
}

// DeleteReport removes every chunk of a report from the index.
func (i *Index) DeleteReport(ctx context.Context, reportID string) error {
	q := bleve.NewTermQuery(reportID)
	q.SetField("report_id")

	for {
		req := bleve.NewSearchRequestOptions(q, 500, 0, false)
		res, err := i.idx.SearchInContext(ctx, req)
		if err != nil {
			return err
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := i.idx.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := i.idx.Batch(batch); err != nil {
			return err
		}
	}
}
