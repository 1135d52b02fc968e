package tools

import (
	"context"
	"testing"
)

func TestRegistrySubsetOnlyKeepsNamedTools(t *testing.T) {
	reg := NewRegistry(NewCurlTool(), NewScriptTool(nil))

	sub := reg.Subset([]string{"curl"})
	if _, ok := sub.Get("curl"); !ok {
		t.Fatal("expected curl in the subset")
	}
	if _, ok := sub.Get("script"); ok {
		t.Fatal("did not expect script in the subset")
	}
	if len(sub.All()) != 1 {
		t.Fatalf("expected exactly 1 tool in subset, got %d", len(sub.All()))
	}
}

func TestRegistryGetMissingToolReturnsFalse(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Get("nonexistent"); ok {
		t.Fatal("expected Get to return ok=false for an unregistered tool")
	}
}

func TestCurlToolValidateRejectsNonHTTPAndDisallowedHosts(t *testing.T) {
	unrestricted := NewCurlTool()
	if err := unrestricted.Validate("ftp://example.com"); err == nil {
		t.Fatal("expected an error for a non-http(s) scheme")
	}
	if err := unrestricted.Validate("http://anything.example.com"); err != nil {
		t.Fatalf("unexpected error for an unrestricted tool: %v", err)
	}

	restricted := NewCurlTool("prometheus.svc.cluster.local")
	if err := restricted.Validate("http://prometheus.svc.cluster.local/metrics"); err != nil {
		t.Fatalf("expected allowed host to pass: %v", err)
	}
	if err := restricted.Validate("http://evil.example.com"); err == nil {
		t.Fatal("expected an error for a host outside the allow-list")
	}
}

func TestScriptToolExecutesRegisteredScriptAndRejectsUnknown(t *testing.T) {
	tool := NewScriptTool(map[string]func(ctx context.Context, args string) (string, error){
		"describe-pods": func(ctx context.Context, args string) (string, error) {
			return "pods in " + args, nil
		},
	})

	if err := tool.Validate("describe-pods default"); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
	if err := tool.Validate("nonexistent"); err == nil {
		t.Fatal("expected validate to reject an unregistered script")
	}

	result, err := tool.Execute(context.Background(), "describe-pods default")
	if err != nil {
		t.Fatalf("unexpected execute error: %v", err)
	}
	if !result.Success || result.Output != "pods in default" {
		t.Fatalf("unexpected result: %+v", result)
	}

	result, err = tool.Execute(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("unexpected execute error: %v", err)
	}
	if result.Success {
		t.Fatal("expected execute to fail for an unregistered script")
	}
}
