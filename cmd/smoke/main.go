package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var baseURL = "http://localhost:8080"

const sampleReport = `# Operation Ghost Mirror
The threat actor APT29 (also known as Cozy Bear) targeted government agencies and think tanks
with spearphishing emails carrying the WellMess malware. Command and control ran over
HTTPS to 185.225.69.69 and the domain mirror-update[.]com.`

func main() {
	if v := os.Getenv("SMOKE_BASE_URL"); v != "" {
		baseURL = v
	}
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting smoke test...")

	fmt.Println("1. Health check...")
	if _, ok := sendRequest("GET", "/healthz", nil); !ok {
		fmt.Println("FAILED: Health check")
		os.Exit(1)
	}
	fmt.Println("PASSED: Health check")

	fmt.Println("2. Query construction...")
	params := map[string]interface{}{
		"threat_actors": []string{"APT29"},
		"malware":       []map[string]string{{"Name": "WellMess"}},
	}
	if _, ok := sendRequest("POST", "/query", params); !ok {
		fmt.Println("FAILED: Query construction")
		os.Exit(1)
	}
	fmt.Println("PASSED: Query construction")

	fmt.Println("3. Ingesting report (dry run)...")
	body, ok := sendRequest("POST", "/reports", map[string]interface{}{
		"name":    "ghost-mirror.md",
		"content": sampleReport,
		"dry_run": true,
	})
	if !ok {
		fmt.Println("FAILED: Ingest report")
		os.Exit(1)
	}
	var analysis struct {
		Report struct {
			ID string `json:"id"`
		} `json:"report"`
	}
	if err := json.Unmarshal(body, &analysis); err != nil || analysis.Report.ID == "" {
		fmt.Printf("FAILED: Ingest report returned no report id: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("PASSED: Ingest report")

	fmt.Println("4. Re-running extraction...")
	if _, ok := sendRequest("POST", "/extract", map[string]string{"report_id": analysis.Report.ID}); !ok {
		fmt.Println("FAILED: Extract")
		os.Exit(1)
	}
	fmt.Println("PASSED: Extract")
}

func sendRequest(method, endpoint string, payload interface{}) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return respBody, true
}
