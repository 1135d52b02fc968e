package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// KubectlCommand is a parsed "kubectl <verb> <resource> [name] [-n ns]
// [flags]" invocation.
type KubectlCommand struct {
	Verb         string
	Resource     string
	ResourceName string
	Namespace    string
	Flags        []string
}

// KubectlTool executes a read-only (by default) subset of kubectl verbs
// against a real cluster via client-go, replacing original_source's `kube`
// crate usage. Grounded on src/agent/tools/kubectl.rs's verb allowlist,
// command parser and per-verb dispatch.
type KubectlTool struct {
	clientset          kubernetes.Interface
	allowedVerbs       map[string]bool
	namespaceWhitelist []string
}

func NewKubectlTool(clientset kubernetes.Interface) *KubectlTool {
	allowed := map[string]bool{}
	for _, v := range []string{"get", "describe", "logs", "top", "events"} {
		allowed[v] = true
	}
	return &KubectlTool{clientset: clientset, allowedVerbs: allowed}
}

// WithAllowedVerbs extends the allowed verb set, for remediation
// workflows that explicitly opt into write access.
func (t *KubectlTool) WithAllowedVerbs(verbs ...string) *KubectlTool {
	for _, v := range verbs {
		t.allowedVerbs[v] = true
	}
	return t
}

func (t *KubectlTool) WithNamespaceWhitelist(namespaces ...string) *KubectlTool {
	t.namespaceWhitelist = namespaces
	return t
}

func (t *KubectlTool) Name() string { return "kubectl" }

func (t *KubectlTool) Description() string {
	return "Execute kubectl commands for Kubernetes cluster inspection. " +
		"Supports get, describe, logs, and events; top is accepted but returns an error. " +
		"Write verbs require explicit elevation."
}

func (t *KubectlTool) parseCommand(input string) (KubectlCommand, error) {
	parts := strings.Fields(input)
	if len(parts) == 0 || parts[0] != "kubectl" {
		return KubectlCommand{}, fmt.Errorf("command must start with 'kubectl'")
	}
	if len(parts) < 3 {
		return KubectlCommand{}, fmt.Errorf("incomplete kubectl command")
	}

	cmd := KubectlCommand{Verb: parts[1], Resource: parts[2]}

	for i, p := range parts {
		if p == "-n" || p == "--namespace" {
			if i+1 < len(parts) {
				cmd.Namespace = parts[i+1]
			}
		}
	}

	i := 3
	if len(parts) > 3 && !strings.HasPrefix(parts[3], "-") {
		cmd.ResourceName = parts[3]
		i = 4
	}
	for ; i < len(parts); i++ {
		if strings.HasPrefix(parts[i], "-") {
			cmd.Flags = append(cmd.Flags, parts[i])
			if i+1 < len(parts) && !strings.HasPrefix(parts[i+1], "-") {
				cmd.Flags = append(cmd.Flags, parts[i+1])
				i++
			}
		}
	}

	return cmd, nil
}

func (t *KubectlTool) Validate(input string) error {
	cmd, err := t.parseCommand(input)
	if err != nil {
		return err
	}
	if !t.allowedVerbs[cmd.Verb] {
		return fmt.Errorf("verb %q is not allowed", cmd.Verb)
	}
	if len(t.namespaceWhitelist) > 0 {
		ns := cmd.Namespace
		if ns == "" {
			ns = "default"
		}
		found := false
		for _, w := range t.namespaceWhitelist {
			if w == ns {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("namespace %q is not in whitelist", ns)
		}
	}
	if cmd.Verb == "delete" && cmd.Resource == "namespace" {
		return fmt.Errorf("deleting namespaces is not allowed")
	}
	return nil
}

func (t *KubectlTool) Execute(ctx context.Context, input string) (Result, error) {
	cmd, err := t.parseCommand(input)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}
	if err := t.Validate(input); err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}

	out, err := t.dispatch(ctx, cmd)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}
	return Result{Success: true, Output: out}, nil
}

func (t *KubectlTool) dispatch(ctx context.Context, cmd KubectlCommand) (string, error) {
	switch cmd.Verb {
	case "get":
		return t.handleGet(ctx, cmd)
	case "describe":
		return t.handleDescribe(ctx, cmd)
	case "logs":
		return t.handleLogs(ctx, cmd)
	case "events":
		return t.handleEvents(ctx, cmd)
	case "top":
		return "", fmt.Errorf("top is not yet implemented")
	default:
		return "", fmt.Errorf("unsupported kubectl verb: %s", cmd.Verb)
	}
}

func (t *KubectlTool) namespace(cmd KubectlCommand) string {
	if cmd.Namespace != "" {
		return cmd.Namespace
	}
	return "default"
}

func (t *KubectlTool) handleGet(ctx context.Context, cmd KubectlCommand) (string, error) {
	ns := t.namespace(cmd)
	switch cmd.Resource {
	case "pod", "pods":
		if cmd.ResourceName != "" {
			pod, err := t.clientset.CoreV1().Pods(ns).Get(ctx, cmd.ResourceName, metav1.GetOptions{})
			if err != nil {
				return "", err
			}
			return marshalIndent(pod)
		}
		pods, err := t.clientset.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{})
		if err != nil {
			return "", err
		}
		return marshalIndent(pods)
	case "deployment", "deployments":
		deploys, err := t.clientset.AppsV1().Deployments(ns).List(ctx, metav1.ListOptions{})
		if err != nil {
			return "", err
		}
		return marshalIndent(deploys)
	default:
		return fmt.Sprintf("resource type %q not yet implemented", cmd.Resource), nil
	}
}

func (t *KubectlTool) handleDescribe(ctx context.Context, cmd KubectlCommand) (string, error) {
	if cmd.Resource != "pod" && cmd.Resource != "pods" {
		return "", fmt.Errorf("describe is only implemented for pods")
	}
	if cmd.ResourceName == "" {
		return "", fmt.Errorf("pod name required for describe")
	}
	pod, err := t.clientset.CoreV1().Pods(t.namespace(cmd)).Get(ctx, cmd.ResourceName, metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nNamespace: %s\nPhase: %s\n", pod.Name, pod.Namespace, pod.Status.Phase)
	for _, cs := range pod.Status.ContainerStatuses {
		fmt.Fprintf(&b, "Container %s: ready=%v restarts=%d\n", cs.Name, cs.Ready, cs.RestartCount)
	}
	return b.String(), nil
}

func (t *KubectlTool) handleLogs(ctx context.Context, cmd KubectlCommand) (string, error) {
	if cmd.Resource != "pod" && cmd.Resource != "pods" {
		return "", fmt.Errorf("logs can only be retrieved for pods")
	}
	if cmd.ResourceName == "" {
		return "", fmt.Errorf("pod name required for logs")
	}
	req := t.clientset.CoreV1().Pods(t.namespace(cmd)).GetLogs(cmd.ResourceName, &corev1.PodLogOptions{})
	stream, err := req.Stream(ctx)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, rerr := stream.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return string(buf), nil
}

func (t *KubectlTool) handleEvents(ctx context.Context, cmd KubectlCommand) (string, error) {
	events, err := t.clientset.CoreV1().Events(t.namespace(cmd)).List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", err
	}
	return marshalIndent(events)
}

func marshalIndent(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
