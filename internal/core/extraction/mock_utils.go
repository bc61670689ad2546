package extraction

import (
	"context"
	"strings"

	"github.com/agenthands/ctigraph/internal/core/model"
)

type MockLLMClient struct {
	Response  string
	Responses map[string]string // keyed by a substring of the prompt
	Err       error
	Prompts   []string
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	for marker, resp := range m.Responses {
		if strings.Contains(prompt, marker) {
			return resp, nil
		}
	}
	return m.Response, nil
}

type MockRetriever struct {
	Results []model.SearchResult
	Err     error
	Queries []string
	K       int
}

func (m *MockRetriever) Retrieve(ctx context.Context, reportID, query string, k int) ([]model.SearchResult, error) {
	m.Queries = append(m.Queries, query)
	m.K = k
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Results, nil
}
