package embedding

import (
	"context"
	"testing"

	"github.com/triageops/controlplane/internal/model"
	"github.com/triageops/controlplane/internal/store"
)

type fakeEmbedder struct {
	vector []float32
}

func (f *fakeEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return f.vector, nil
}

func TestIndexResultEmbedsAndStoresSummary(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(&fakeEmbedder{vector: []float32{0.1, 0.2}}, st)

	result := model.AgentResult{
		RootCause: "pod OOMKilled",
		Findings:  []string{"memory limit too low", "restart count 5"},
	}
	if err := svc.IndexResult(context.Background(), "run-1", result); err != nil {
		t.Fatalf("IndexResult: %v", err)
	}

	similar, err := svc.FindSimilar(context.Background(), "pod is crashing", 5)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(similar) != 1 {
		t.Fatalf("expected 1 similar incident, got %d", len(similar))
	}
}

func TestIndexResultSkipsEmptySummary(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(&fakeEmbedder{vector: []float32{0.1}}, st)

	if err := svc.IndexResult(context.Background(), "run-2", model.AgentResult{}); err != nil {
		t.Fatalf("IndexResult: %v", err)
	}
	similar, err := svc.FindSimilar(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(similar) != 0 {
		t.Fatalf("expected no indexed incidents, got %d", len(similar))
	}
}

func TestFindSimilarSkipsEmptyQuery(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(&fakeEmbedder{vector: []float32{0.1}}, st)

	similar, err := svc.FindSimilar(context.Background(), "   ", 5)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if similar != nil {
		t.Fatalf("expected nil result for empty query, got %v", similar)
	}
}
