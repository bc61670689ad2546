package model

import "time"

// Report is a source document registered with the vector store.
type Report struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
	Chunks    int       `json:"chunks"`
}

// Chunk is a retrievable fragment of a report.
type Chunk struct {
	ID         int64     `json:"id"`
	ReportID   string    `json:"report_id"`
	Position   int       `json:"position"`
	PageNumber int       `json:"page_number,omitempty"`
	Heading    string    `json:"heading,omitempty"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"-"`
}
