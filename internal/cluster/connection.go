package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"syscall"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/goyalankit/click/internal/identity"
	"github.com/goyalankit/click/internal/logging"
)

// Connection is the sole owner of network transport for one cluster
// context. Transport state is never shared across contexts.
type Connection struct {
	name       string
	clientset  kubernetes.Interface
	restConfig *rest.Config
	backoff    wait.Backoff
	log        *logging.Logger
}

// defaultBackoff bounds retries for idempotent reads.
var defaultBackoff = wait.Backoff{
	Steps:    3,
	Duration: 200 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
}

// RESTConfigFor translates a resolved identity into a client-go rest.Config
// for the given API endpoint.
func RESTConfigFor(server string, id *identity.Identity) *rest.Config {
	tlsCfg := rest.TLSClientConfig{
		CertData: id.CertificatePEM(),
		KeyData:  id.KeyPEM(),
	}
	if id.TrustPolicy().Insecure() {
		tlsCfg.Insecure = true
	} else {
		tlsCfg.CAData = id.TrustPolicy().CABundle()
	}
	return &rest.Config{
		Host:            server,
		TLSClientConfig: tlsCfg,
	}
}

// Connect builds the authenticated connection for a context. The identity
// must already be resolved; Connect never triggers resolution itself.
func Connect(name, server string, id *identity.Identity) (*Connection, error) {
	restConfig := RESTConfigFor(server, id)
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return &Connection{
		name:       name,
		clientset:  clientset,
		restConfig: restConfig,
		backoff:    defaultBackoff,
		log:        logging.Get().With("context", name),
	}, nil
}

// NewWithClientset wires a Connection over an existing clientset. Used by
// tests with the fake clientset.
func NewWithClientset(name string, clientset kubernetes.Interface) *Connection {
	return &Connection{
		name:      name,
		clientset: clientset,
		backoff:   wait.Backoff{Steps: 1, Duration: time.Millisecond, Factor: 1.0},
		log:       logging.Get().With("context", name),
	}
}

func (c *Connection) Context() string { return c.name }

// Close is a handle-release hook; client-go transports are pooled per
// rest.Config and reclaimed when the Connection is dropped.
func (c *Connection) Close() {
	if c.restConfig != nil {
		c.restConfig = nil
	}
}

// List fetches the current entries of a kind. Transient failures are
// retried with bounded backoff; listings are idempotent reads.
func (c *Connection) List(ctx context.Context, kind Kind, parent string) ([]Entry, error) {
	var entries []Entry
	err := c.retryRead(ctx, func() error {
		var err error
		entries, err = c.list(ctx, kind, parent)
		return err
	})
	if err != nil {
		return nil, wrapAPIError(err, "list "+string(kind))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (c *Connection) list(ctx context.Context, kind Kind, parent string) ([]Entry, error) {
	switch kind {
	case KindNamespace:
		return c.listNamespaces(ctx)
	case KindNode:
		return c.listNodes(ctx)
	case KindPod:
		return c.listPods(ctx, parent)
	case KindContainer:
		namespace, pod := SplitParent(parent)
		return c.listContainers(ctx, namespace, pod)
	}
	return nil, fmt.Errorf("unknown resource kind %q", kind)
}

func (c *Connection) listNamespaces(ctx context.Context) ([]Entry, error) {
	list, err := c.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(list.Items))
	for _, ns := range list.Items {
		entries = append(entries, Entry{
			Kind:   KindNamespace,
			Name:   ns.Name,
			Status: string(ns.Status.Phase),
		})
	}
	return entries, nil
}

func (c *Connection) listNodes(ctx context.Context) ([]Entry, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(list.Items))
	for _, node := range list.Items {
		status := "NotReady"
		for _, cond := range node.Status.Conditions {
			if cond.Type == corev1.NodeReady && cond.Status == corev1.ConditionTrue {
				status = "Ready"
			}
		}
		entries = append(entries, Entry{
			Kind:   KindNode,
			Name:   node.Name,
			Status: status,
			Meta: map[string]string{
				"version": node.Status.NodeInfo.KubeletVersion,
			},
		})
	}
	return entries, nil
}

func (c *Connection) listPods(ctx context.Context, namespace string) ([]Entry, error) {
	list, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(list.Items))
	for _, pod := range list.Items {
		ready := 0
		restarts := int32(0)
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.Ready {
				ready++
			}
			restarts += cs.RestartCount
		}
		entries = append(entries, Entry{
			Kind:      KindPod,
			Name:      pod.Name,
			Namespace: pod.Namespace,
			Status:    string(pod.Status.Phase),
			Meta: map[string]string{
				"ready":    fmt.Sprintf("%d/%d", ready, len(pod.Spec.Containers)),
				"restarts": fmt.Sprintf("%d", restarts),
				"node":     pod.Spec.NodeName,
			},
		})
	}
	return entries, nil
}

func (c *Connection) listContainers(ctx context.Context, namespace, podName string) ([]Entry, error) {
	pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	states := map[string]string{}
	for _, cs := range pod.Status.ContainerStatuses {
		states[cs.Name] = containerState(cs)
	}
	entries := make([]Entry, 0, len(pod.Spec.Containers))
	for _, container := range pod.Spec.Containers {
		status, ok := states[container.Name]
		if !ok {
			status = "unknown"
		}
		entries = append(entries, Entry{
			Kind:      KindContainer,
			Name:      container.Name,
			Namespace: namespace,
			Pod:       podName,
			Status:    status,
			Meta: map[string]string{
				"image": container.Image,
			},
		})
	}
	return entries, nil
}

func containerState(cs corev1.ContainerStatus) string {
	switch {
	case cs.State.Running != nil:
		return "running"
	case cs.State.Waiting != nil:
		return "waiting: " + cs.State.Waiting.Reason
	case cs.State.Terminated != nil:
		return "terminated: " + cs.State.Terminated.Reason
	}
	return "unknown"
}

// StreamLogs opens a log stream for a container. The caller owns the
// ReadCloser; cancelling ctx terminates the stream.
func (c *Connection) StreamLogs(ctx context.Context, namespace, pod string, opts LogOptions) (io.ReadCloser, error) {
	logOpts := &corev1.PodLogOptions{
		Container:  opts.Container,
		Follow:     opts.Follow,
		Previous:   opts.Previous,
		Timestamps: opts.Timestamps,
		TailLines:  opts.TailLines,
	}
	stream, err := c.clientset.CoreV1().Pods(namespace).GetLogs(pod, logOpts).Stream(ctx)
	if err != nil {
		return nil, wrapAPIError(err, "stream logs")
	}
	return stream, nil
}

// Exec runs a command in a container over SPDY. Mutating: a failure is
// surfaced immediately, never retried.
func (c *Connection) Exec(ctx context.Context, namespace, pod, container string, command []string, streams ExecStreams) error {
	if c.restConfig == nil {
		return errors.New("exec requires a live cluster connection")
	}
	req := c.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(pod).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: container,
			Command:   command,
			Stdin:     streams.In != nil,
			Stdout:    streams.Out != nil,
			Stderr:    streams.ErrOut != nil && !streams.TTY,
			TTY:       streams.TTY,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.restConfig, http.MethodPost, req.URL())
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  streams.In,
		Stdout: streams.Out,
		Stderr: streams.ErrOut,
		Tty:    streams.TTY,
	})
	if err != nil && ctx.Err() == nil {
		return wrapAPIError(err, "exec")
	}
	return err
}

// DeletePod deletes a pod. Mutating: never retried.
func (c *Connection) DeletePod(ctx context.Context, namespace, pod string) error {
	err := c.clientset.CoreV1().Pods(namespace).Delete(ctx, pod, metav1.DeleteOptions{})
	if err != nil {
		return wrapAPIError(err, "delete pod")
	}
	return nil
}

// retryRead retries fn on transient errors with bounded backoff. Read-only
// operations only.
func (c *Connection) retryRead(ctx context.Context, fn func() error) error {
	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, c.backoff, func(context.Context) (bool, error) {
		lastErr = fn()
		if lastErr == nil {
			return true, nil
		}
		if isTransient(lastErr) {
			c.log.Debug("transient error, retrying", "error", lastErr)
			return false, nil
		}
		return false, lastErr
	})
	if err != nil && lastErr != nil {
		return lastErr
	}
	return err
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsInternalError(err)
}

// wrapAPIError classifies an API failure at the lowest layer that can: a
// status-bearing error becomes a RequestFailedError, everything else is
// wrapped with the failing verb.
func wrapAPIError(err error, verb string) error {
	if err == nil {
		return nil
	}
	var statusErr *apierrors.StatusError
	if errors.As(err, &statusErr) {
		return &RequestFailedError{
			Status:  int(statusErr.ErrStatus.Code),
			Message: statusErr.ErrStatus.Message,
		}
	}
	return fmt.Errorf("%s: %w", verb, err)
}
