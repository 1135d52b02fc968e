package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/template"
)

// slackMessage mirrors the shape the teacher's SlackClient posts to
// chat.postMessage; generalized here to carry a run result instead of a
// fixed alert-status payload.
type slackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text,omitempty"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// slackSink posts a WorkflowRun's result to a Slack channel via a bot
// token, adapted from internal/client/slack.go's send/SendAlert pair: the
// run's phase substitutes for the alert's firing/resolved status.
type slackSink struct {
	botToken   string
	channel    string
	template   string
	httpClient *http.Client
}

func newSlackSink(cfg model.SinkConfig) *slackSink {
	return &slackSink{
		botToken:   cfg.BotToken,
		channel:    cfg.Channel,
		template:   cfg.Template,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *slackSink) Send(ctx context.Context, run *model.WorkflowRun, wf model.Workflow, data map[string]any) error {
	if s.botToken == "" || s.channel == "" {
		return fmt.Errorf("slack sink not configured: missing bot token or channel")
	}

	text := s.template
	if text != "" {
		text = template.Render(text, data)
	} else {
		text = fmt.Sprintf("Workflow %s finished with phase %s", wf.Name, run.Phase)
	}

	msg := slackMessage{
		Channel: s.channel,
		Attachments: []slackAttachment{
			{
				Color:  colorForPhase(run.Phase),
				Title:  fmt.Sprintf("%s %s", emojiForPhase(run.Phase), wf.Name),
				Text:   text,
				Footer: "triageops",
				Ts:     time.Now().Unix(),
				Fields: []slackField{
					{Title: "Run", Value: run.ID, Short: true},
					{Title: "Phase", Value: string(run.Phase), Short: true},
				},
			},
		},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://slack.com/api/chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var slackResp slackResponse
	if err := json.Unmarshal(body, &slackResp); err != nil {
		return fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return fmt.Errorf("slack API error: %s", slackResp.Error)
	}
	return nil
}

func colorForPhase(phase model.RunPhase) string {
	switch phase {
	case model.RunSucceeded:
		return "#36a64f"
	case model.RunFailed:
		return "#dc3545"
	case model.RunSuspended:
		return "#ffc107"
	default:
		return "#17a2b8"
	}
}

func emojiForPhase(phase model.RunPhase) string {
	switch phase {
	case model.RunSucceeded:
		return "✅"
	case model.RunFailed:
		return "\U0001F525"
	case model.RunSuspended:
		return "⏸"
	default:
		return "ℹ"
	}
}
