// Package embedding completes the similar-incident retrieval wiring the
// teacher's go.mod points at but never finishes: its
// internal/client/genai.go embeds text with google.golang.org/genai and
// its internal/db/embedding.go stores the vector in Postgres via
// pgvector-go, but nothing calls either from a real investigation. Here
// a completed AgentResult's summary is embedded and indexed, and future
// investigations query the index for similar past incidents.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/triageops/controlplane/internal/config"
	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/store"
)

const embeddingModel = "text-embedding-004"

// embedder is the narrow surface Service needs from a text-embedding
// backend, matching the teacher's internal/client/genai.go EmbedText
// shape so Service can be tested against a fake instead of a live API.
type embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Client wraps the genai text-embedding model.
type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, cfg config.EmbeddingConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing AI_API_KEY")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, err
	}
	return &Client{client: c, model: embeddingModel}, nil
}

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	res, err := c.client.Models.EmbedContent(ctx, c.model, genai.Text(text), nil)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Embeddings) == 0 || res.Embeddings[0] == nil {
		return nil, fmt.Errorf("empty embedding result")
	}
	return res.Embeddings[0].Values, nil
}

// Service indexes completed investigations and retrieves similar past
// ones for a new investigation's goal.
type Service struct {
	client embedder
	st     store.Store
}

func NewService(client embedder, st store.Store) *Service {
	return &Service{client: client, st: st}
}

// IndexResult embeds a completed AgentResult's summary and stores it,
// so future investigations can retrieve it as a similar incident.
func (s *Service) IndexResult(ctx context.Context, runID string, result model.AgentResult) error {
	summary := summarize(result)
	if summary == "" {
		return nil
	}
	vector, err := s.client.EmbedText(ctx, summary)
	if err != nil {
		return fmt.Errorf("embed investigation summary: %w", err)
	}
	return s.st.InsertIncidentEmbedding(ctx, runID, summary, vector)
}

// FindSimilar embeds the query text and returns the nearest-neighbor
// past incidents by cosine distance.
func (s *Service) FindSimilar(ctx context.Context, query string, limit int) ([]model.SimilarIncident, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	vector, err := s.client.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.st.ListSimilarIncidents(ctx, vector, limit)
}

func summarize(result model.AgentResult) string {
	if result.RootCause == "" && len(result.Findings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("root cause: ")
	b.WriteString(result.RootCause)
	if len(result.Findings) > 0 {
		b.WriteString("; findings: ")
		b.WriteString(strings.Join(result.Findings, "; "))
	}
	return b.String()
}
