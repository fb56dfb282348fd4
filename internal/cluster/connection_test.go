package cluster

import (
	"context"
	"errors"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func newPod(namespace, name, phase string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{Name: "app", Image: "nginx:1.27"},
				{Name: "sidecar", Image: "envoy:1.30"},
			},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodPhase(phase),
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "app", Ready: true, State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}}},
			},
		},
	}
}

func TestListNamespacesSorted(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "zeta"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "alpha"}},
	)
	conn := NewWithClientset("test", clientset)

	entries, err := conn.List(context.Background(), KindNamespace, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, "zeta", entries[1].Name)
	assert.Equal(t, KindNamespace, entries[0].Kind)
}

func TestListPodsScopedToNamespace(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		newPod("default", "web-1", "Running"),
		newPod("other", "db-1", "Running"),
	)
	conn := NewWithClientset("test", clientset)

	entries, err := conn.List(context.Background(), KindPod, "default")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "web-1", entries[0].Name)
	assert.Equal(t, "default", entries[0].Namespace)
	assert.Equal(t, "Running", entries[0].Status)
	assert.Equal(t, "1/2", entries[0].Meta["ready"])
}

func TestListContainers(t *testing.T) {
	clientset := fake.NewSimpleClientset(newPod("default", "web-1", "Running"))
	conn := NewWithClientset("test", clientset)

	entries, err := conn.List(context.Background(), KindContainer, ContainerParent("default", "web-1"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "app", entries[0].Name)
	assert.Equal(t, "running", entries[0].Status)
	assert.Equal(t, "nginx:1.27", entries[0].Meta["image"])
	assert.Equal(t, "unknown", entries[1].Status)
}

func TestListRetriesTransientErrors(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}},
	)
	calls := 0
	clientset.PrependReactor("list", "namespaces", func(action k8stesting.Action) (bool, runtime.Object, error) {
		calls++
		if calls == 1 {
			return true, nil, syscall.ECONNRESET
		}
		return false, nil, nil
	})
	conn := NewWithClientset("test", clientset)
	conn.backoff.Steps = 3

	entries, err := conn.List(context.Background(), KindNamespace, "")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 2, calls)
}

func TestListDoesNotRetryTerminalErrors(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	calls := 0
	forbidden := apierrors.NewForbidden(
		schema.GroupResource{Resource: "namespaces"}, "", errors.New("rbac says no"))
	clientset.PrependReactor("list", "namespaces", func(k8stesting.Action) (bool, runtime.Object, error) {
		calls++
		return true, nil, forbidden
	})
	conn := NewWithClientset("test", clientset)
	conn.backoff.Steps = 3

	_, err := conn.List(context.Background(), KindNamespace, "")
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var reqErr *RequestFailedError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 403, reqErr.Status)
}

func TestDeletePodNeverRetried(t *testing.T) {
	clientset := fake.NewSimpleClientset(newPod("default", "web-1", "Running"))
	calls := 0
	clientset.PrependReactor("delete", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		calls++
		return true, nil, syscall.ECONNRESET
	})
	conn := NewWithClientset("test", clientset)

	err := conn.DeletePod(context.Background(), "default", "web-1")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "mutations must surface failures immediately")
}

func TestResourceYAML(t *testing.T) {
	clientset := fake.NewSimpleClientset(newPod("default", "web-1", "Running"))
	conn := NewWithClientset("test", clientset)

	out, err := conn.ResourceYAML(context.Background(), KindPod, "default", "web-1")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: Pod")
	assert.Contains(t, out, "name: web-1")
}

func TestResourceYAMLNotFound(t *testing.T) {
	conn := NewWithClientset("test", fake.NewSimpleClientset())

	_, err := conn.ResourceYAML(context.Background(), KindPod, "default", "ghost")
	var reqErr *RequestFailedError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 404, reqErr.Status)
}

func TestStreamLogs(t *testing.T) {
	clientset := fake.NewSimpleClientset(newPod("default", "web-1", "Running"))
	conn := NewWithClientset("test", clientset)

	stream, err := conn.StreamLogs(context.Background(), "default", "web-1", LogOptions{Container: "app"})
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	// The fake clientset serves a fixed body; what matters is that the
	// stream opens and terminates cleanly.
	assert.NotEmpty(t, data)
}

func TestSplitParent(t *testing.T) {
	namespace, pod := SplitParent("default/web-1")
	assert.Equal(t, "default", namespace)
	assert.Equal(t, "web-1", pod)

	namespace, pod = SplitParent("default")
	assert.Equal(t, "default", namespace)
	assert.Empty(t, pod)
}
