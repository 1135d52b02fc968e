package client

import (
	"context"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestPodRunnerRunReturnsLogsOnSuccess(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	runner := NewPodRunner(clientset, "default", "busybox:latest").WithPollInterval(10 * time.Millisecond)

	go func() {
		for {
			pods, err := clientset.CoreV1().Pods("default").List(context.Background(), metav1.ListOptions{})
			if err == nil && len(pods.Items) > 0 {
				pod := pods.Items[0]
				pod.Status.Phase = corev1.PodSucceeded
				_, _ = clientset.CoreV1().Pods("default").UpdateStatus(context.Background(), &pod, metav1.UpdateOptions{})
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	_, err := runner.Run(context.Background(), "echo hi", time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestPodRunnerRunReturnsErrorOnPodFailure(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	runner := NewPodRunner(clientset, "default", "busybox:latest").WithPollInterval(10 * time.Millisecond)

	go func() {
		for {
			pods, err := clientset.CoreV1().Pods("default").List(context.Background(), metav1.ListOptions{})
			if err == nil && len(pods.Items) > 0 {
				pod := pods.Items[0]
				pod.Status.Phase = corev1.PodFailed
				pod.Status.Reason = "Error"
				_, _ = clientset.CoreV1().Pods("default").UpdateStatus(context.Background(), &pod, metav1.UpdateOptions{})
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	_, err := runner.Run(context.Background(), "false", time.Second)
	if err == nil {
		t.Fatalf("expected error for failed pod")
	}
}

func TestPodRunnerRunTimesOut(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	runner := NewPodRunner(clientset, "default", "busybox:latest").WithPollInterval(5 * time.Millisecond)

	_, err := runner.Run(context.Background(), "sleep 100", 30*time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}
