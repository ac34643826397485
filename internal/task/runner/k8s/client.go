// Package k8s runs execution units as Kubernetes pods.
package k8s

import (
	"context"
	"fmt"
	"os"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/OpenNSW/taskrunner/internal/config"
	"github.com/OpenNSW/taskrunner/internal/task/runner"
)

// Client implements runner.EnvironmentClient on top of the core/v1 pods API.
type Client struct {
	cs                kubernetes.Interface
	startPollInterval time.Duration
}

var _ runner.EnvironmentClient = (*Client)(nil)

func NewClient(cs kubernetes.Interface) *Client {
	return &Client{cs: cs, startPollInterval: time.Second}
}

// NewFromConfig connects using an explicit kubeconfig path when set, otherwise
// the in-cluster service account, then $KUBECONFIG, then ~/.kube/config.
func NewFromConfig(cfg config.KubernetesConfig) (*Client, error) {
	restCfg, err := restConfig(cfg.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load kubernetes config: %w", err)
	}
	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return NewClient(cs), nil
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
		kubeconfig = os.Getenv(clientcmd.RecommendedConfigPathEnvVar)
	}
	if kubeconfig == "" {
		kubeconfig = clientcmd.RecommendedHomeFile
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}

func (c *Client) Create(ctx context.Context, spec runner.UnitSpec) (*runner.UnitStatus, error) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: spec.Namespace,
			Labels:    spec.Labels,
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{{
				Name:    runner.ContainerName,
				Image:   spec.Image,
				Command: []string{"/bin/sh", "-c"},
				Args:    []string{spec.Command},
			}},
		},
	}

	created, err := c.cs.CoreV1().Pods(spec.Namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create pod %s: %w", spec.Name, err)
	}
	return statusOf(created), nil
}

func (c *Client) Read(ctx context.Context, name, namespace string) (*runner.UnitStatus, error) {
	pod, err := c.cs.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get pod "+name)
	}
	return statusOf(pod), nil
}

// FetchLogs returns the task-runner container's log. With waitForContainer set it
// first waits, until ctx is done, for the container to have started.
func (c *Client) FetchLogs(ctx context.Context, name, namespace string, waitForContainer bool) (string, error) {
	if waitForContainer {
		if err := c.waitForStart(ctx, name, namespace); err != nil {
			return "", err
		}
	}

	raw, err := c.cs.CoreV1().Pods(namespace).
		GetLogs(name, &corev1.PodLogOptions{Container: runner.ContainerName}).
		DoRaw(ctx)
	if err != nil {
		return "", mapError(err, "failed to fetch logs for pod "+name)
	}
	return string(raw), nil
}

func (c *Client) waitForStart(ctx context.Context, name, namespace string) error {
	for {
		pod, err := c.cs.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return mapError(err, "failed to get pod "+name)
		}
		if containerStarted(pod) {
			return nil
		}

		t := time.NewTimer(c.startPollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) Delete(ctx context.Context, name, namespace string, gracePeriod time.Duration) error {
	seconds := int64(gracePeriod / time.Second)
	err := c.cs.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{GracePeriodSeconds: &seconds})
	if err != nil {
		return mapError(err, "failed to delete pod "+name)
	}
	return nil
}

func statusOf(pod *corev1.Pod) *runner.UnitStatus {
	return &runner.UnitStatus{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Phase:     phaseOf(pod.Status.Phase),
		Reason:    pod.Status.Reason,
	}
}

func phaseOf(p corev1.PodPhase) runner.Phase {
	switch p {
	case corev1.PodPending, "":
		return runner.PhasePending
	case corev1.PodRunning:
		return runner.PhaseRunning
	case corev1.PodSucceeded:
		return runner.PhaseSucceeded
	case corev1.PodFailed:
		return runner.PhaseFailed
	default:
		return runner.PhaseUnknown
	}
}

func containerStarted(pod *corev1.Pod) bool {
	if pod.Status.Phase == corev1.PodSucceeded || pod.Status.Phase == corev1.PodFailed {
		return true
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.Name == runner.ContainerName && (cs.State.Running != nil || cs.State.Terminated != nil) {
			return true
		}
	}
	return false
}

func mapError(err error, msg string) error {
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%s: %w: %v", msg, runner.ErrUnitNotFound, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
