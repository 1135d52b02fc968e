// Package client holds the Kubernetes transport the control plane uses to
// run CLI steps: PodRunner.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/rand"
	"k8s.io/client-go/kubernetes"
)

// PodRunner implements executor.CLIRunner by running the rendered
// command in a short-lived Pod and streaming back its logs once it
// completes, grounded on original_source's execute_cli_step/
// create_cli_pod/wait_for_pod_completion (which used the `kube` crate's
// Api<Pod>::create + a watch loop) translated to client-go's typed
// CoreV1().Pods() client with a poll loop instead of a watch, matching
// the teacher's KubectlTool preference for the typed clientset over
// raw REST calls.
type PodRunner struct {
	clientset kubernetes.Interface
	namespace string
	image     string
	pollEvery time.Duration
}

func NewPodRunner(clientset kubernetes.Interface, namespace, image string) *PodRunner {
	if namespace == "" {
		namespace = "default"
	}
	if image == "" {
		image = "busybox:latest"
	}
	return &PodRunner{clientset: clientset, namespace: namespace, image: image, pollEvery: 2 * time.Second}
}

// WithPollInterval overrides the completion poll interval, for tests
// that can't wait out the 2s production default.
func (r *PodRunner) WithPollInterval(d time.Duration) *PodRunner {
	r.pollEvery = d
	return r
}

// Run creates a Pod running "sh -c <command>", waits for it to reach a
// terminal phase (bounded by timeout), and returns its combined log
// output. The Pod is deleted afterward regardless of outcome.
func (r *PodRunner) Run(ctx context.Context, command string, timeout time.Duration) (string, error) {
	name := fmt.Sprintf("workflow-cli-%s", rand.String(10))
	pods := r.clientset.CoreV1().Pods(r.namespace)

	pod := r.buildPod(name, command)
	if _, err := pods.Create(ctx, pod, metav1.CreateOptions{}); err != nil {
		return "", fmt.Errorf("create cli pod: %w", err)
	}
	defer func() {
		_ = pods.Delete(context.Background(), name, metav1.DeleteOptions{})
	}()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.waitForCompletion(waitCtx, name); err != nil {
		return "", err
	}
	return r.fetchLogs(ctx, name)
}

func (r *PodRunner) buildPod(name, command string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: r.namespace,
			Labels:    map[string]string{"app.kubernetes.io/managed-by": "triageops-controlplane"},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:    "cli",
					Image:   r.image,
					Command: []string{"sh", "-c", command},
				},
			},
		},
	}
}

func (r *PodRunner) waitForCompletion(ctx context.Context, name string) error {
	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("cli pod %s did not complete before the step timeout", name)
		case <-ticker.C:
			pod, err := r.clientset.CoreV1().Pods(r.namespace).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				if apierrors.IsNotFound(err) {
					return fmt.Errorf("cli pod %s disappeared before completion", name)
				}
				continue
			}
			switch pod.Status.Phase {
			case corev1.PodSucceeded:
				return nil
			case corev1.PodFailed:
				return fmt.Errorf("cli pod %s failed: %s", name, podFailureReason(pod))
			}
		}
	}
}

func (r *PodRunner) fetchLogs(ctx context.Context, name string) (string, error) {
	req := r.clientset.CoreV1().Pods(r.namespace).GetLogs(name, &corev1.PodLogOptions{Container: "cli"})
	stream, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch cli pod logs: %w", err)
	}
	defer stream.Close()

	var b strings.Builder
	buf := make([]byte, 4096)
	for {
		n, rerr := stream.Read(buf)
		if n > 0 {
			b.Write(buf[:n])
		}
		if rerr != nil {
			break
		}
	}
	return b.String(), nil
}

func podFailureReason(pod *corev1.Pod) string {
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Terminated != nil && cs.State.Terminated.Reason != "" {
			return cs.State.Terminated.Reason
		}
	}
	return pod.Status.Reason
}
