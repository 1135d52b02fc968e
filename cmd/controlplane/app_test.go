package main

import (
	"context"
	"testing"

	"github.com/triageops/controlplane/internal/agent"
	"github.com/triageops/controlplane/internal/config"
	"github.com/triageops/controlplane/internal/store"
)

func TestBuildProviderSelectsByConfig(t *testing.T) {
	cases := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{provider: "", wantName: "mock"},
		{provider: "mock", wantName: "mock"},
		{provider: "anthropic", wantName: "anthropic"},
		{provider: "openai", wantName: "openai"},
		{provider: "bogus", wantErr: true},
	}

	for _, tc := range cases {
		got, err := buildProvider(config.AgentConfig{Provider: tc.provider, Model: "m", APIKey: "k"})
		if tc.wantErr {
			if err == nil {
				t.Errorf("provider %q: expected error, got none", tc.provider)
			}
			continue
		}
		if err != nil {
			t.Fatalf("provider %q: unexpected error: %v", tc.provider, err)
		}
		if got.Name() != tc.wantName {
			t.Errorf("provider %q: got %q, want %q", tc.provider, got.Name(), tc.wantName)
		}
	}
}

func TestOpenStoreFallsBackToMemoryWithoutPostgresConfig(t *testing.T) {
	st, err := openStore(context.Background(), config.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := st.(*store.MemoryStore); !ok {
		t.Fatalf("expected *store.MemoryStore, got %T", st)
	}
}

var _ agent.LLMProvider = (*agent.MockProvider)(nil)
