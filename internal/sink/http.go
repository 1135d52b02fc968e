package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/template"
)

// httpSink delivers a templated request body to a generic HTTP endpoint,
// covering alertmanager (silence/annotation callback), PagerDuty (events
// API) and Jira (issue creation) — all three are "render a body, POST it,
// check the status code" in the original, differing only in URL and
// auth header, so one implementation serves all three, adapted from
// internal/service/webhook_delivery.go's sendHTTP.
type httpSink struct {
	kind       model.SinkType
	endpoint   string
	template   string
	routingKey string
	action     string
	httpClient *http.Client
}

func newHTTPSink(kind model.SinkType, cfg model.SinkConfig) *httpSink {
	return &httpSink{
		kind:       kind,
		endpoint:   cfg.Endpoint,
		template:   cfg.Template,
		routingKey: cfg.RoutingKey,
		action:     cfg.Action,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *httpSink) Send(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, data map[string]any) error {
	if s.endpoint == "" {
		return fmt.Errorf("%s sink not configured: missing endpoint", s.kind)
	}

	body := s.renderBody(run, wf, data)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBufferString(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.kind == model.SinkPagerDuty && s.routingKey != "" {
		req.Header.Set("Authorization", "Token token="+s.routingKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", s.kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s sink returned status %d", s.kind, resp.StatusCode)
	}
	return nil
}

func (s *httpSink) renderBody(run *model.WorkflowRun, wf model.Workflow, data map[string]any) string {
	if s.template != "" {
		return template.Render(s.template, data)
	}

	switch s.kind {
	case model.SinkPagerDuty:
		return marshalCompact(map[string]any{
			"routing_key":  s.routingKey,
			"event_action": firstNonEmpty(s.action, "trigger"),
			"payload": map[string]any{
				"summary":  fmt.Sprintf("%s: %s", wf.Name, run.Phase),
				"source":   "triageops",
				"severity": "error",
				"custom_details": runSummary(run, wf, data),
			},
		})
	case model.SinkJira:
		return marshalCompact(map[string]any{
			"fields": map[string]any{
				"summary":     fmt.Sprintf("[%s] %s", run.Phase, wf.Name),
				"description": marshalCompact(runSummary(run, wf, data)),
			},
		})
	default: // alertmanager
		return marshalCompact(runSummary(run, wf, data))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
