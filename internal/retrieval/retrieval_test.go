package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.texts = append(m.texts, text)
	return m.vec, m.err
}

type mockIndex struct {
	results  []model.SearchResult
	err      error
	reportID string
	k        int
}

func (m *mockIndex) VectorSearch(ctx context.Context, reportID string, embedding []float32, k int) ([]model.SearchResult, error) {
	m.reportID = reportID
	m.k = k
	return m.results, m.err
}

type mockReranker struct {
	order []int
	err   error
}

func (m *mockReranker) Rank(ctx context.Context, query string, documents []string) ([]int, error) {
	return m.order, m.err
}

type mockKeywords struct {
	results []model.SearchResult
	err     error
}

func (m *mockKeywords) Search(ctx context.Context, reportID, query string, k int) ([]model.SearchResult, error) {
	return m.results, m.err
}

func sampleResults() []model.SearchResult {
	return []model.SearchResult{
		{ChunkID: 1, Position: 0, Content: "first"},
		{ChunkID: 2, Position: 1, Content: "second"},
		{ChunkID: 3, Position: 2, Content: "third"},
	}
}

func TestRetrieve(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1, 0}}
	idx := &mockIndex{results: sampleResults()}
	r := NewRetriever(emb, idx, nil)

	got, err := r.Retrieve(context.Background(), "r1", "APT groups", 15)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, []string{"APT groups"}, emb.texts)
	assert.Equal(t, "r1", idx.reportID)
	assert.Equal(t, 15, idx.k)
}

func TestRetrieveReranks(t *testing.T) {
	r := NewRetriever(&mockEmbedder{vec: []float32{1}}, &mockIndex{results: sampleResults()}, &mockReranker{order: []int{2, 2, 9, 0}})

	got, err := r.Retrieve(context.Background(), "r1", "q", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].ChunkID)
	assert.Equal(t, int64(1), got[1].ChunkID)
	assert.Equal(t, int64(2), got[2].ChunkID)
}

func TestRetrieveRerankFailureKeepsOrder(t *testing.T) {
	r := NewRetriever(&mockEmbedder{vec: []float32{1}}, &mockIndex{results: sampleResults()}, &mockReranker{err: errors.New("boom")})

	got, err := r.Retrieve(context.Background(), "r1", "q", 3)
	require.NoError(t, err)
	assert.Equal(t, sampleResults(), got)
}

func TestRetrieveErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewRetriever(&mockEmbedder{err: errors.New("down")}, &mockIndex{}, nil).Retrieve(ctx, "r1", "q", 5)
	assert.ErrorContains(t, err, "failed to embed query")

	_, err = NewRetriever(&mockEmbedder{vec: []float32{1}}, &mockIndex{err: errors.New("locked")}, nil).Retrieve(ctx, "r1", "q", 5)
	assert.ErrorContains(t, err, "vector search failed")

	_, err = NewRetriever(nil, &mockIndex{}, nil).Retrieve(ctx, "r1", "q", 5)
	assert.Error(t, err)

	got, err := NewRetriever(nil, &mockIndex{}, nil).Retrieve(ctx, "r1", "q", 0)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRetrieveHybrid(t *testing.T) {
	keywords := &mockKeywords{results: []model.SearchResult{
		{Position: 2, Content: "third"},
		{Position: 7, Content: "keyword only"},
	}}
	r := NewRetriever(&mockEmbedder{vec: []float32{1}}, &mockIndex{results: sampleResults()}, nil)
	r.Keywords = keywords

	got, err := r.Retrieve(context.Background(), "r1", "q", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// third is ranked by both methods.
	assert.Equal(t, "third", got[0].Content)
	assert.Equal(t, int64(3), got[0].ChunkID)
	assert.Equal(t, "first", got[1].Content)
	// second and keyword only tie; vector hits were seen first.
	assert.Equal(t, "second", got[2].Content)

	keywords.err = errors.New("index closed")
	got, err = r.Retrieve(context.Background(), "r1", "q", 3)
	require.NoError(t, err)
	assert.Equal(t, sampleResults(), got)
}

func TestFuseRRF(t *testing.T) {
	vec := []model.SearchResult{{Position: 0}, {Position: 1}}
	kw := []model.SearchResult{{Position: 1}, {Position: 0}}

	got := fuseRRF(vec, kw, 0)
	require.Len(t, got, 2)
	// Equal scores keep first-seen order.
	assert.Equal(t, 0, got[0].Position)
	assert.InDelta(t, 1.0/61+1.0/62, got[0].Score, 1e-9)
}
