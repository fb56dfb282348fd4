// Package clustertest provides an in-memory cluster.Interface for tests,
// seeded with a static hierarchy and observable call behavior.
package clustertest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/goyalankit/click/internal/cluster"
)

// Fake is an in-memory cluster connection. Seed it with entries per
// (kind, parent) pair; override hooks to inject failures.
type Fake struct {
	mu sync.Mutex

	ContextName string
	Entries     map[string][]cluster.Entry

	// ListErr, when set, fails every List call.
	ListErr error
	// LogLines is served by StreamLogs, one chunk per line.
	LogLines []string
	// LogHang keeps the log stream open (follow mode) until ctx cancel.
	LogHang bool

	Deleted   []string
	ExecCalls [][]string
	Closed    bool
	ListCalls int
}

var _ cluster.Interface = (*Fake)(nil)

// New seeds a fake with the standard test hierarchy: namespaces
// default/prod, node node-1, pods web-1/web-2 in default, containers
// app/sidecar in web-1.
func New(name string) *Fake {
	return &Fake{
		ContextName: name,
		Entries: map[string][]cluster.Entry{
			key(cluster.KindNamespace, ""): {
				{Kind: cluster.KindNamespace, Name: "default", Status: "Active"},
				{Kind: cluster.KindNamespace, Name: "prod", Status: "Active"},
			},
			key(cluster.KindNode, ""): {
				{Kind: cluster.KindNode, Name: "node-1", Status: "Ready"},
			},
			key(cluster.KindPod, "default"): {
				{Kind: cluster.KindPod, Name: "web-1", Namespace: "default", Status: "Running"},
				{Kind: cluster.KindPod, Name: "web-2", Namespace: "default", Status: "Pending"},
			},
			key(cluster.KindContainer, "default/web-1"): {
				{Kind: cluster.KindContainer, Name: "app", Namespace: "default", Pod: "web-1", Status: "running"},
				{Kind: cluster.KindContainer, Name: "sidecar", Namespace: "default", Pod: "web-1", Status: "running"},
			},
		},
		LogLines: []string{"log line one", "log line two"},
	}
}

func key(kind cluster.Kind, parent string) string {
	return string(kind) + "|" + parent
}

func (f *Fake) Context() string { return f.ContextName }

func (f *Fake) List(_ context.Context, kind cluster.Kind, parent string) ([]cluster.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Entries[key(kind, parent)], nil
}

func (f *Fake) StreamLogs(ctx context.Context, namespace, pod string, opts cluster.LogOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	lines := make([]string, len(f.LogLines))
	copy(lines, f.LogLines)
	hang := f.LogHang || opts.Follow
	f.mu.Unlock()

	pr, pw := io.Pipe()
	go func() {
		for _, line := range lines {
			if _, err := io.WriteString(pw, line+"\n"); err != nil {
				return
			}
		}
		if hang {
			<-ctx.Done()
			pw.CloseWithError(ctx.Err())
			return
		}
		pw.Close()
	}()
	return pr, nil
}

func (f *Fake) Exec(_ context.Context, namespace, pod, container string, command []string, streams cluster.ExecStreams) error {
	f.mu.Lock()
	f.ExecCalls = append(f.ExecCalls, command)
	f.mu.Unlock()
	if streams.Out != nil {
		fmt.Fprintf(streams.Out, "exec %s in %s/%s[%s]\n", strings.Join(command, " "), namespace, pod, container)
	}
	return nil
}

func (f *Fake) DeletePod(_ context.Context, namespace, pod string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, namespace+"/"+pod)
	return nil
}

func (f *Fake) Describe(kind cluster.Kind, namespace, name string) (string, error) {
	return fmt.Sprintf("Name: %s\nKind: %s\nNamespace: %s\n", name, kind, namespace), nil
}

func (f *Fake) ResourceYAML(_ context.Context, kind cluster.Kind, namespace, name string) (string, error) {
	kinds := map[cluster.Kind]string{
		cluster.KindNamespace: "Namespace",
		cluster.KindNode:      "Node",
		cluster.KindPod:       "Pod",
	}
	return fmt.Sprintf("kind: %s\nmetadata:\n  name: %s\n  namespace: %s\n", kinds[kind], name, namespace), nil
}

func (f *Fake) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
}
