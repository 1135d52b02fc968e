package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CurlTool performs a bounded GET request to a caller-provided URL, for
// investigating HTTP health/metrics endpoints. Grounded on
// original_source/crates/operator/src/agent/tools/curl.rs. Only http/https schemes and
// only GET are permitted — no request body, no arbitrary methods.
type CurlTool struct {
	httpClient   *http.Client
	allowedHosts []string // empty means unrestricted
}

func NewCurlTool(allowedHosts ...string) *CurlTool {
	return &CurlTool{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		allowedHosts: allowedHosts,
	}
}

func (t *CurlTool) Name() string { return "curl" }

func (t *CurlTool) Description() string {
	return "Perform a read-only HTTP GET request against an allowed endpoint."
}

func (t *CurlTool) Validate(input string) error {
	url := strings.TrimSpace(input)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("only http/https URLs are permitted")
	}
	if len(t.allowedHosts) == 0 {
		return nil
	}
	for _, host := range t.allowedHosts {
		if strings.Contains(url, host) {
			return nil
		}
	}
	return fmt.Errorf("host not in allowed list for URL %q", url)
}

func (t *CurlTool) Execute(ctx context.Context, input string) (Result, error) {
	if err := t.Validate(input); err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", strings.TrimSpace(input), nil)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("request failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}
	return Result{Success: true, Output: string(body), Metadata: map[string]string{"status": resp.Status}}, nil
}
