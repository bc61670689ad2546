package model

import "encoding/json"

// ErrorMarker replaces model output that could not be parsed as JSON.
const ErrorMarker = "Invalid JSON response"

// ExtractionResult is the parsed chat model output for one category.
type ExtractionResult struct {
	Category string          `json:"category"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
	Raw      string          `json:"-"`
}

func (r ExtractionResult) Failed() bool {
	return r.Error != ""
}

// ExtractionContext is what gets rendered into a category prompt.
type ExtractionContext struct {
	Category string
	Query    string
	Text     string
}
