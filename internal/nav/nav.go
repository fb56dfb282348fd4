// Package nav holds the REPL's current location: a validated path through
// the context/namespace/pod/container hierarchy. The state is owned by the
// foreground loop; nothing else mutates it.
package nav

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goyalankit/click/internal/cache"
	"github.com/goyalankit/click/internal/cluster"
)

var (
	// ErrNotFound means the requested segment does not exist under the
	// current path. The path is left unchanged.
	ErrNotFound = errors.New("not found")
	// ErrNotSelectable means the kind cannot be selected at the current
	// depth (e.g. a container without a pod).
	ErrNotSelectable = errors.New("not selectable here")
	// ErrAtRoot means Ascend was called with nothing selected.
	ErrAtRoot = errors.New("already at root")
	// ErrNoContext means navigation was attempted before any context was
	// activated.
	ErrNoContext = errors.New("no active context")
)

// Segment is one selected step of the path.
type Segment struct {
	Kind cluster.Kind
	Name string
}

// Snapshot is an immutable copy of the path taken at command invocation
// time; commands resolve against it even if navigation changes mid-flight.
type Snapshot struct {
	Context  string
	Segments []Segment
}

// Namespace returns the selected namespace, if any.
func (s Snapshot) Namespace() string { return s.segment(cluster.KindNamespace) }

// Pod returns the selected pod, if any.
func (s Snapshot) Pod() string { return s.segment(cluster.KindPod) }

// Container returns the selected container, if any.
func (s Snapshot) Container() string { return s.segment(cluster.KindContainer) }

// Node returns the selected node, if any.
func (s Snapshot) Node() string { return s.segment(cluster.KindNode) }

func (s Snapshot) segment(kind cluster.Kind) string {
	for _, seg := range s.Segments {
		if seg.Kind == kind {
			return seg.Name
		}
	}
	return ""
}

// String renders the path as context/segment/segment.
func (s Snapshot) String() string {
	parts := []string{s.Context}
	for _, seg := range s.Segments {
		parts = append(parts, seg.Name)
	}
	return strings.Join(parts, "/")
}

// State is the navigation cursor for the session. Descend and Ascend are
// the only path mutations; both validate against the context's cache.
type State struct {
	contextName string
	cache       *cache.Cache
	segments    []Segment
}

// NewState returns an unbound cursor; Bind attaches it to a context.
func NewState() *State {
	return &State{}
}

// Bind points the cursor at a newly activated context and resets the path
// to root. Called on every context switch.
func (s *State) Bind(contextName string, c *cache.Cache) {
	s.contextName = contextName
	s.cache = c
	s.segments = nil
}

// Context returns the bound context name.
func (s *State) Context() string { return s.contextName }

// Snapshot returns an immutable copy of the current path.
func (s *State) Snapshot() Snapshot {
	segments := make([]Segment, len(s.segments))
	copy(segments, s.segments)
	return Snapshot{Context: s.contextName, Segments: segments}
}

// Reset returns the path to root.
func (s *State) Reset() {
	s.segments = nil
}

// At reports the kind of the deepest selected segment, or "" at root.
func (s *State) At() cluster.Kind {
	if len(s.segments) == 0 {
		return ""
	}
	return s.segments[len(s.segments)-1].Kind
}

// ChildKinds returns the kinds selectable beneath the current path.
func (s *State) ChildKinds() []cluster.Kind {
	switch s.At() {
	case "":
		return []cluster.Kind{cluster.KindNamespace, cluster.KindNode}
	case cluster.KindNamespace:
		return []cluster.Kind{cluster.KindPod}
	case cluster.KindPod:
		return []cluster.Kind{cluster.KindContainer}
	}
	return nil
}

// ChildParent returns the cache parent path for children of the given
// kind under the current path.
func (s *State) ChildParent(kind cluster.Kind) string {
	snap := s.Snapshot()
	switch kind {
	case cluster.KindPod:
		return snap.Namespace()
	case cluster.KindContainer:
		return cluster.ContainerParent(snap.Namespace(), snap.Pod())
	}
	return ""
}

// Descend selects a child segment. The name is validated against the
// current cache snapshot; if the relevant slice has never been loaded a
// refresh is triggered and its result observed before returning. On any
// failure the path is unchanged.
func (s *State) Descend(ctx context.Context, kind cluster.Kind, name string) error {
	if s.cache == nil {
		return ErrNoContext
	}
	selectable := false
	for _, k := range s.ChildKinds() {
		if k == kind {
			selectable = true
		}
	}
	if !selectable {
		return fmt.Errorf("%w: %s under %s", ErrNotSelectable, kind, s.describeDepth())
	}

	parent := s.ChildParent(kind)
	slice, ok := s.cache.Get(kind, parent)
	if !ok {
		var err error
		slice, err = s.cache.Refresh(ctx, kind, parent)
		if err != nil {
			return err
		}
	}
	for _, entry := range slice.Entries {
		if entry.Name == name {
			s.segments = append(s.segments, Segment{Kind: kind, Name: name})
			return nil
		}
	}
	return fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
}

// Ascend pops the given number of segments.
func (s *State) Ascend(levels int) error {
	if len(s.segments) == 0 {
		return ErrAtRoot
	}
	if levels <= 0 {
		levels = 1
	}
	if levels > len(s.segments) {
		levels = len(s.segments)
	}
	s.segments = s.segments[:len(s.segments)-levels]
	return nil
}

func (s *State) describeDepth() string {
	if at := s.At(); at != "" {
		return string(at)
	}
	return "root"
}
