package core

import (
	"context"
	"errors"
	"strings"

	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/agenthands/ctigraph/internal/publish"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type MockDriver struct {
	QueryExecuted string
	QueryParams   map[string]interface{}
	Calls         int
	MockResult    neo4j.EagerResult
	Err           error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Calls++
	m.QueryExecuted = query
	m.QueryParams = params
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.MockResult, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

type MockEmbedder struct {
	Vector []float32
	Err    error
	Calls  int
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}

// MockLLM answers each category prompt by its JSON key.
type MockLLM struct {
	Responses map[string]string
	Err       error
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	for key, resp := range m.Responses {
		if strings.Contains(prompt, `"`+key+`"`) {
			return resp, nil
		}
	}
	return "{}", nil
}

// MockStore keeps reports in memory and returns every chunk of a report on search.
type MockStore struct {
	Reports map[string]model.Report
	Chunks  map[string][]model.Chunk
	AddErr  error
}

func NewMockStore() *MockStore {
	return &MockStore{Reports: map[string]model.Report{}, Chunks: map[string][]model.Chunk{}}
}

func (m *MockStore) AddReport(ctx context.Context, report model.Report, chunks []model.Chunk) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.Reports[report.ID] = report
	m.Chunks[report.ID] = chunks
	return nil
}

func (m *MockStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r, ok := m.Reports[id]
	if !ok {
		return nil, errors.New("report not found")
	}
	return &r, nil
}

func (m *MockStore) ReportText(ctx context.Context, id string) ([]string, error) {
	var out []string
	for _, c := range m.Chunks[id] {
		out = append(out, c.Content)
	}
	return out, nil
}

func (m *MockStore) DeleteReport(ctx context.Context, id string) error {
	if _, ok := m.Reports[id]; !ok {
		return errors.New("report not found")
	}
	delete(m.Reports, id)
	delete(m.Chunks, id)
	return nil
}

func (m *MockStore) VectorSearch(ctx context.Context, reportID string, embedding []float32, k int) ([]model.SearchResult, error) {
	var out []model.SearchResult
	for i, c := range m.Chunks[reportID] {
		if i >= k {
			break
		}
		out = append(out, model.SearchResult{ChunkID: int64(i + 1), ReportID: reportID, Content: c.Content, Score: 1})
	}
	return out, nil
}

type MockPublisher struct {
	Events []publish.Event
	Err    error
}

func (m *MockPublisher) Publish(ctx context.Context, ev publish.Event) error {
	m.Events = append(m.Events, ev)
	return m.Err
}

func (m *MockPublisher) Close() error { return nil }

type MockKeywords struct {
	Indexed map[string][]model.Chunk
	Results []model.SearchResult
	Deleted []string
}

func (m *MockKeywords) AddChunks(reportID string, chunks []model.Chunk) error {
	if m.Indexed == nil {
		m.Indexed = map[string][]model.Chunk{}
	}
	m.Indexed[reportID] = chunks
	return nil
}

func (m *MockKeywords) Search(ctx context.Context, reportID, query string, k int) ([]model.SearchResult, error) {
	return m.Results, nil
}

func (m *MockKeywords) DeleteReport(ctx context.Context, reportID string) error {
	m.Deleted = append(m.Deleted, reportID)
	return nil
}
