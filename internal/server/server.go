package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/agenthands/ctigraph/internal/config"
	"github.com/agenthands/ctigraph/internal/core"
	"github.com/agenthands/ctigraph/internal/core/extraction"
	"github.com/agenthands/ctigraph/internal/core/graph"
	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/agenthands/ctigraph/internal/driver"
	"github.com/agenthands/ctigraph/internal/keyword"
	"github.com/agenthands/ctigraph/internal/llm"
	"github.com/agenthands/ctigraph/internal/parser"
	"github.com/agenthands/ctigraph/internal/publish"
	"github.com/agenthands/ctigraph/internal/store"
)

type Server struct {
	Graph          *core.ThreatGraph
	Parsers        *parser.Registry
	AllowedOrigins []string
	closers        []func() error
}

func New(g *core.ThreatGraph) *Server {
	return &Server{Graph: g, Parsers: parser.NewRegistry(), AllowedOrigins: []string{"*"}}
}

// NewServer wires every backend named in cfg. An empty Neo4j URI leaves the
// graph offline.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	var d driver.GraphDriver
	closeGraph := func() error { return nil }
	if cfg.Neo4j.URI != "" {
		neo, err := driver.NewNeo4jDriver(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
		}
		d = neo
		closeGraph = func() error { return neo.Close(context.Background()) }
	} else {
		log.Printf("Warning: no Neo4j URI configured; graph operations are disabled")
	}

	vectors, err := store.New(cfg.Retrieval.DBPath, cfg.Retrieval.EmbeddingDim)
	if err != nil {
		closeGraph()
		return nil, err
	}

	llmClient, embedderClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		vectors.Close()
		closeGraph()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	if embedderClient == nil {
		log.Printf("Warning: provider %s has no embedding endpoint; report ingestion is disabled", cfg.LLM.Provider)
	}

	var pub publish.Publisher = publish.Nop{}
	if cfg.Kafka.Broker != "" {
		pub = publish.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.Topic)
	}

	g := core.NewThreatGraph(d, llmClient, embedderClient, vectors, pub, cfg)
	if err := g.BuildIndices(ctx); err != nil {
		log.Printf("Warning: failed to build indices: %v", err)
	}

	s := New(g)
	s.AllowedOrigins = cfg.Server.AllowedOrigins
	s.closers = []func() error{
		pub.Close,
		vectors.Close,
		closeGraph,
	}

	if cfg.Retrieval.Hybrid {
		kw, err := keyword.Open(cfg.Retrieval.KeywordIndex)
		if err != nil {
			s.Close()
			return nil, err
		}
		g.UseKeywordIndex(kw)
		s.closers = append(s.closers, kw.Close)
	}
	return s, nil
}

func (s *Server) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Printf("Warning: close failed: %v", err)
		}
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/reports", s.AddReport)
	r.DELETE("/reports/:id", s.DeleteReport)
	r.POST("/extract", s.Extract)
	r.POST("/load", s.Load)
	r.POST("/query", s.Query)
	r.GET("/actors/:name", s.ActorProfile)
	r.GET("/stats", s.Stats)
	r.GET("/clusters", s.Clusters)

	return r
}

type AddReportRequest struct {
	Name    string `json:"name" form:"name"`
	Content string `json:"content"`
	DryRun  bool   `json:"dry_run" form:"dry_run"`
}

// AddReport accepts either JSON {name, content} or a multipart upload in field "file".
func (s *Server) AddReport(c *gin.Context) {
	var req AddReportRequest
	var sections []parser.Section
	format := "txt"

	if c.ContentType() == "multipart/form-data" {
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, name, err := s.parseUpload(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Name == "" {
			req.Name = name
		}
		sections, format = res.Sections, res.Format
	} else {
		if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		sections = parser.FromText(req.Content).Sections
	}
	if req.Name == "" {
		req.Name = "report"
	}

	analysis, err := s.Graph.ProcessReport(c.Request.Context(), req.Name, format, sections, !req.DryRun)
	if err != nil {
		s.fail(c, "Failed to process report", err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Handler wraps the router with CORS for the configured origins.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.SetupRouter())
}

func (s *Server) DeleteReport(c *gin.Context) {
	err := s.Graph.DeleteReport(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrReportNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, "Failed to delete report", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) parseUpload(c *gin.Context) (*parser.ParseResult, string, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("missing file: %w", err)
	}
	dir, err := os.MkdirTemp("", "ctigraph-upload-*")
	if err != nil {
		return nil, "", err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, path); err != nil {
		return nil, "", err
	}
	res, err := s.Parsers.ParseFile(c.Request.Context(), path)
	if err != nil {
		return nil, "", err
	}
	return res, file.Filename, nil
}

type ExtractRequest struct {
	ReportID string `json:"report_id" binding:"required"`
}

func (s *Server) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.Graph.Store.GetReport(ctx, req.ReportID); err != nil {
		if errors.Is(err, store.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.fail(c, "Failed to read report", err)
		return
	}

	results, err := s.Graph.Extractor.Extract(ctx, req.ReportID)
	if err != nil {
		s.fail(c, "Failed to extract", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "parameters": extraction.Merge(results)})
}

func (s *Server) Load(c *gin.Context) {
	var p model.Parameters
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := s.Graph.Load(c.Request.Context(), p)
	if graph.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, "Failed to load", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) Query(c *gin.Context) {
	var p model.Parameters
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	stmt, err := s.Graph.Query(p)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stmt)
}

func (s *Server) ActorProfile(c *gin.Context) {
	profile, err := s.Graph.ActorProfile(c.Request.Context(), c.Param("name"))
	if errors.Is(err, graph.ErrActorNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, "Failed to read actor", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) Stats(c *gin.Context) {
	stats, err := s.Graph.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, "Failed to read stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": stats})
}

func (s *Server) Clusters(c *gin.Context) {
	minShared, err := strconv.Atoi(c.DefaultQuery("min_shared", "1"))
	if err != nil || minShared < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_shared must be a positive integer"})
		return
	}
	clusters, err := s.Graph.ActorClusters(c.Request.Context(), minShared)
	if err != nil {
		s.fail(c, "Failed to cluster actors", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": clusters})
}

func (s *Server) fail(c *gin.Context, msg string, err error) {
	log.Printf("%s: %v", msg, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
