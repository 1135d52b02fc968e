package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PromQLTool runs read-only instant queries against a Prometheus HTTP
// API, grounded on original_source/crates/operator/src/agent/tools/promql.rs. Input is
// the raw PromQL expression string.
type PromQLTool struct {
	endpoint   string
	httpClient *http.Client
}

func NewPromQLTool(endpoint string) *PromQLTool {
	return &PromQLTool{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *PromQLTool) Name() string { return "promql" }

func (t *PromQLTool) Description() string {
	return "Run a read-only PromQL instant query against the cluster's Prometheus."
}

func (t *PromQLTool) Validate(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("promql query must not be empty")
	}
	return nil
}

func (t *PromQLTool) Execute(ctx context.Context, input string) (Result, error) {
	if err := t.Validate(input); err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}

	q := url.Values{}
	q.Set("query", input)

	req, err := http.NewRequestWithContext(ctx, "GET", t.endpoint+"/api/v1/query?"+q.Encode(), nil)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("promql request failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Success: false, Error: fmt.Sprintf("prometheus returned status %d: %s", resp.StatusCode, string(body))}, nil
	}

	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err == nil {
		if formatted, ferr := json.MarshalIndent(pretty, "", "  "); ferr == nil {
			return Result{Success: true, Output: string(formatted)}, nil
		}
	}
	return Result{Success: true, Output: string(body)}, nil
}
