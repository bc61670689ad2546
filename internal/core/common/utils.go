package common

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencePattern matches opening ```json / ```python / ``` markers at line starts and
// closing ``` markers at line ends.
var fencePattern = regexp.MustCompile("(?m)^\\s*```(?:python|json)?\\s*|\\s*```$")

// CleanResponse strips markdown code fences from a chat model reply and, when prose
// surrounds the payload, trims it to the outermost JSON object.
func CleanResponse(response string) string {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimSpace(fencePattern.ReplaceAllString(cleaned, ""))

	if json.Valid([]byte(cleaned)) {
		return cleaned
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end > start {
		return cleaned[start : end+1]
	}
	return cleaned
}

// ParseJSON cleans and unmarshals a JSON string into a type T.
func ParseJSON[T any](response string) (T, error) {
	var zero T
	jsonStr := CleanResponse(response)
	if !strings.HasPrefix(jsonStr, "{") {
		return zero, fmt.Errorf("no JSON object found in response (missing '{')")
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, jsonStr)
	}

	return result, nil
}

// ParseObject returns the cleaned response as raw JSON when it is a JSON object.
func ParseObject(response string) (json.RawMessage, error) {
	obj, err := ParseJSON[map[string]json.RawMessage](response)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("response is JSON null")
	}
	return json.RawMessage(CleanResponse(response)), nil
}
