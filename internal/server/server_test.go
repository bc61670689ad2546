package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ctigraph/internal/config"
	"github.com/agenthands/ctigraph/internal/core"
	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/agenthands/ctigraph/internal/publish"
	"github.com/agenthands/ctigraph/internal/store"
)

type mockDriver struct {
	queries []string
	result  neo4j.EagerResult
	err     error
}

func (m *mockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.queries = append(m.queries, query)
	return m.result, m.err
}

func (m *mockDriver) BuildIndices(ctx context.Context) error { return nil }
func (m *mockDriver) Close(ctx context.Context) error        { return nil }

type mockLLM struct{}

func (mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, `"threat_actors"`):
		return `{"threat_actors": ["Lazarus Group"]}`, nil
	case strings.Contains(prompt, `"malware"`):
		return "```json\n{\"malware\": [{\"Name\": \"AppleJeus\"}]}\n```", nil
	}
	return "not json", nil
}

type mockEmbedder struct{}

func (mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

type memStore struct {
	reports map[string]model.Report
	chunks  map[string][]model.Chunk
}

func (m *memStore) AddReport(ctx context.Context, r model.Report, chunks []model.Chunk) error {
	m.reports[r.ID] = r
	m.chunks[r.ID] = chunks
	return nil
}

func (m *memStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, store.ErrReportNotFound
	}
	return &r, nil
}

func (m *memStore) ReportText(ctx context.Context, id string) ([]string, error) {
	var out []string
	for _, c := range m.chunks[id] {
		out = append(out, c.Content)
	}
	return out, nil
}

func (m *memStore) DeleteReport(ctx context.Context, id string) error {
	if _, ok := m.reports[id]; !ok {
		return store.ErrReportNotFound
	}
	delete(m.reports, id)
	delete(m.chunks, id)
	return nil
}

func (m *memStore) VectorSearch(ctx context.Context, reportID string, emb []float32, k int) ([]model.SearchResult, error) {
	var out []model.SearchResult
	for _, c := range m.chunks[reportID] {
		out = append(out, model.SearchResult{ReportID: reportID, Content: c.Content})
	}
	return out, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *mockDriver) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	d := &mockDriver{}
	st := &memStore{reports: map[string]model.Report{}, chunks: map[string][]model.Chunk{}}
	g := core.NewThreatGraph(d, mockLLM{}, mockEmbedder{}, st, publish.Nop{}, config.Default())
	return New(g).SetupRouter(), d
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAddReport(t *testing.T) {
	r, d := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/reports", gin.H{
		"name":    "lazarus.txt",
		"content": "Lazarus Group distributed AppleJeus through fake trading apps hosted on celasllc.com.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var analysis core.Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.Equal(t, []string{"Lazarus Group"}, analysis.Parameters.ThreatActors)
	assert.Equal(t, []model.Malware{{Name: "AppleJeus"}}, analysis.Parameters.Malware)
	require.NotNil(t, analysis.Parameters.IoCs)
	assert.Equal(t, []string{"celasllc.com"}, analysis.Parameters.IoCs.Domains)
	assert.NotNil(t, analysis.Load)
	assert.Len(t, d.queries, 1)
}

func TestAddReportDryRun(t *testing.T) {
	r, d := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/reports", gin.H{"content": "Lazarus Group again.", "dry_run": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, d.queries)
}

func TestAddReportUpload(t *testing.T) {
	r, _ := setupRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "brief.md")
	require.NoError(t, err)
	fw.Write([]byte("# Brief\nLazarus Group activity."))
	mw.WriteField("dry_run", "true")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/reports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var analysis core.Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.Equal(t, "brief.md", analysis.Report.Name)
	assert.Equal(t, "md", analysis.Report.Format)
}

func TestAddReportInvalid(t *testing.T) {
	r, _ := setupRouter(t)
	w := doJSON(r, http.MethodPost, "/reports", gin.H{"name": "empty"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtract(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/extract", gin.H{"report_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/extract", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/reports", gin.H{"content": "Lazarus Group.", "dry_run": true})
	require.Equal(t, http.StatusOK, w.Code)
	var analysis core.Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))

	w = doJSON(r, http.MethodPost, "/extract", gin.H{"report_id": analysis.Report.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Results    []model.ExtractionResult `json:"results"`
		Parameters model.Parameters         `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Results, 4)
	assert.Equal(t, model.ErrorMarker, out.Results[1].Error)
	assert.Equal(t, []string{"Lazarus Group"}, out.Parameters.ThreatActors)
}

func TestLoadAndQuery(t *testing.T) {
	r, d := setupRouter(t)
	params := gin.H{"threat_actors": []string{"APT29"}, "malware": []gin.H{{"Name": "WellMess"}}}

	w := doJSON(r, http.MethodPost, "/query", params)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "UNWIND $threat_actors AS actor_name")
	assert.Empty(t, d.queries)

	w = doJSON(r, http.MethodPost, "/load", params)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, d.queries, 1)

	w = doJSON(r, http.MethodPost, "/load", gin.H{"malware": []gin.H{{"Name": "WellMess"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/query", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	d.err = errors.New("neo4j unavailable")
	w = doJSON(r, http.MethodPost, "/load", params)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestActorProfileAndStats(t *testing.T) {
	r, d := setupRouter(t)

	w := doJSON(r, http.MethodGet, "/actors/Nobody", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	d.result = neo4j.EagerResult{Records: []*neo4j.Record{
		{Keys: []string{"relation", "label", "value"}, Values: []any{"DEPLOYS", "Malware", "WellMess"}},
	}}
	w = doJSON(r, http.MethodGet, "/actors/APT29", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "WellMess")

	d.result = neo4j.EagerResult{Records: []*neo4j.Record{
		{Keys: []string{"label", "total"}, Values: []any{"ThreatActor", int64(1)}},
	}}
	w = doJSON(r, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"nodes": {"ThreatActor": 1}}`, w.Body.String())
}

func TestClusters(t *testing.T) {
	r, d := setupRouter(t)

	w := doJSON(r, http.MethodGet, "/clusters?min_shared=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	d.result = neo4j.EagerResult{Records: []*neo4j.Record{
		{Keys: []string{"actor", "entity"}, Values: []any{"APT28", "Domain:update-check.net"}},
		{Keys: []string{"actor", "entity"}, Values: []any{"Sofacy", "Domain:update-check.net"}},
	}}
	w = doJSON(r, http.MethodGet, "/clusters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"clusters": [{"actors": ["APT28", "Sofacy"], "shared": ["Domain:update-check.net"]}]}`, w.Body.String())
}

func TestDeleteReport(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/reports", gin.H{"content": "Lazarus Group.", "dry_run": true})
	require.Equal(t, http.StatusOK, w.Code)
	var analysis core.Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))

	w = doJSON(r, http.MethodDelete, "/reports/"+analysis.Report.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodDelete, "/reports/"+analysis.Report.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := &memStore{reports: map[string]model.Report{}, chunks: map[string][]model.Chunk{}}
	srv := New(core.NewThreatGraph(&mockDriver{}, mockLLM{}, mockEmbedder{}, st, publish.Nop{}, config.Default()))
	srv.AllowedOrigins = []string{"http://localhost:3000"}
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
