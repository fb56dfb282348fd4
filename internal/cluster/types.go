// Package cluster owns the authenticated transport for one cluster context:
// typed listings, streaming logs, exec, and mutations, all through a single
// client-go clientset built from the context's resolved identity.
package cluster

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Kind identifies a navigable resource kind.
type Kind string

const (
	KindNamespace Kind = "namespace"
	KindNode      Kind = "node"
	KindPod       Kind = "pod"
	KindContainer Kind = "container"
)

// Entry is one listed resource. Entries are keyed by (kind, parent, name)
// within a cache snapshot.
type Entry struct {
	Kind      Kind
	Name      string
	Namespace string
	Pod       string
	Status    string
	Meta      map[string]string
}

// Parent returns the cache parent path for the entry's children.
func (e Entry) Parent() string {
	switch e.Kind {
	case KindNamespace:
		return e.Name
	case KindPod:
		return ContainerParent(e.Namespace, e.Name)
	}
	return ""
}

// ContainerParent builds the parent path for a pod's containers.
func ContainerParent(namespace, pod string) string {
	return namespace + "/" + pod
}

// SplitParent breaks a parent path into namespace and pod components.
func SplitParent(parent string) (namespace, pod string) {
	namespace, pod, _ = strings.Cut(parent, "/")
	return namespace, pod
}

// LogOptions controls a log stream.
type LogOptions struct {
	Container  string
	Follow     bool
	TailLines  *int64
	Previous   bool
	Timestamps bool
}

// ExecStreams carries the I/O endpoints for an exec session.
type ExecStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
	TTY    bool
}

// Interface is the operation surface commands and caches depend on. The
// concrete Connection implements it; tests substitute fakes.
type Interface interface {
	// Context returns the cluster context name this connection serves.
	Context() string

	// List fetches the current entries of a kind under a parent path.
	// Read-only; retried on transient failures.
	List(ctx context.Context, kind Kind, parent string) ([]Entry, error)

	// StreamLogs opens a log stream; cancelling ctx closes it.
	StreamLogs(ctx context.Context, namespace, pod string, opts LogOptions) (io.ReadCloser, error)

	// Exec runs a command in a container, wiring the given streams.
	// Mutating; never retried.
	Exec(ctx context.Context, namespace, pod, container string, command []string, streams ExecStreams) error

	// DeletePod deletes a pod. Mutating; never retried.
	DeletePod(ctx context.Context, namespace, pod string) error

	// Describe renders a kubectl-style description of a resource.
	Describe(kind Kind, namespace, name string) (string, error)

	// ResourceYAML renders the live object as YAML.
	ResourceYAML(ctx context.Context, kind Kind, namespace, name string) (string, error)

	// Close releases the connection's transport.
	Close()
}

// RequestFailedError is a cluster API failure with its HTTP status.
type RequestFailedError struct {
	Status  int
	Message string
}

func (e *RequestFailedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request failed (status %d): %s", e.Status, e.Message)
	}
	return "request failed: " + e.Message
}
