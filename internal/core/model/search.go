package model

type SearchResult struct {
	ChunkID  int64   `json:"chunk_id"`
	ReportID string  `json:"report_id"`
	Position int     `json:"position"`
	Content  string  `json:"content"`
	Heading  string  `json:"heading,omitempty"`
	Score    float64 `json:"score"`
}
