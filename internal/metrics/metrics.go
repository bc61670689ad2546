package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExtractionResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctigraph_extraction_results_total",
			Help: "Extraction results per category and outcome",
		},
		[]string{"category", "status"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctigraph_llm_request_seconds",
			Help:    "Chat model request latency",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		},
		[]string{"category"},
	)

	RetrievedChunks = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctigraph_retrieved_chunks",
			Help:    "Chunks returned by the retriever per category query",
			Buckets: prometheus.LinearBuckets(0, 5, 6),
		},
		[]string{"category"},
	)

	GraphLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctigraph_graph_loads_total",
			Help: "Graph load statements executed",
		},
		[]string{"status"},
	)

	ReportsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctigraph_reports_ingested_total",
			Help: "Reports chunked and embedded into the vector store",
		},
	)
)
