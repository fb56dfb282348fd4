package repl

import (
	"strings"

	"github.com/goyalankit/click/internal/cluster"
	"github.com/goyalankit/click/internal/commands"
	"github.com/goyalankit/click/internal/nav"
	"github.com/goyalankit/click/internal/session"
)

// Completer serves tab completion from the command table and the cached
// resource listings. It only reads what is already cached; completion
// never goes to the network.
type Completer struct {
	registry *commands.Registry
	session  *session.Session
}

// NewCompleter builds the completer over the live session.
func NewCompleter(registry *commands.Registry, sess *session.Session) *Completer {
	return &Completer{registry: registry, session: sess}
}

// Do implements readline.AutoCompleter.
func (c *Completer) Do(line []rune, pos int) ([][]rune, int) {
	words := strings.Split(string(line[:pos]), " ")
	word := words[len(words)-1]

	if len(words) == 1 {
		return suffixes(c.verbs(), word)
	}

	cmd := c.registry.Lookup(words[0])
	if cmd == nil {
		return nil, 0
	}
	switch cmd.Name {
	case "cd":
		return c.pathSuffixes(word)
	case "ctx":
		return suffixes(c.contextNames(), word)
	case "help":
		return suffixes(c.verbs(), word)
	case "logs", "exec":
		if len(words) >= 2 && words[len(words)-2] == "-c" {
			return suffixes(c.containerNames(), word)
		}
	}
	return nil, 0
}

func (c *Completer) verbs() []string {
	var names []string
	for _, cmd := range c.registry.All() {
		names = append(names, cmd.Name)
		names = append(names, cmd.Aliases...)
	}
	return names
}

func (c *Completer) contextNames() []string {
	var names []string
	for _, cs := range c.session.Contexts() {
		names = append(names, cs.Name)
	}
	return names
}

// containerNames lists the selected pod's containers, if cached.
func (c *Completer) containerNames() []string {
	_, contextCache, ok := c.session.Active()
	if !ok {
		return nil
	}
	snap := c.session.Nav().Snapshot()
	if snap.Pod() == "" {
		return nil
	}
	slice, ok := contextCache.Get(cluster.KindContainer, cluster.ContainerParent(snap.Namespace(), snap.Pod()))
	if !ok {
		return nil
	}
	return entryNames(slice.Entries)
}

// pathSuffixes completes the last segment of a cd argument, walking any
// leading segments through the cache first.
func (c *Completer) pathSuffixes(word string) ([][]rune, int) {
	base, last := "", word
	if i := strings.LastIndex(word, "/"); i >= 0 {
		base, last = word[:i+1], word[i+1:]
	}
	return suffixes(c.childNamesAt(base), last)
}

// childNamesAt resolves the names selectable after following the given
// path prefix from the current location. Resolution stops (returning
// nothing) the moment a segment is not in the cache.
func (c *Completer) childNamesAt(prefix string) []string {
	_, contextCache, ok := c.session.Active()
	if !ok {
		return nil
	}

	segments := c.session.Nav().Snapshot().Segments
	if strings.HasPrefix(prefix, "/") {
		segments = nil
	}
	for _, step := range strings.Split(prefix, "/") {
		switch step {
		case "", ".":
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			matched := false
			for _, kind := range childKinds(segments) {
				slice, ok := contextCache.Get(kind, parentPath(kind, segments))
				if !ok {
					continue
				}
				for _, entry := range slice.Entries {
					if entry.Name == step {
						segments = append(segments, nav.Segment{Kind: kind, Name: step})
						matched = true
						break
					}
				}
				if matched {
					break
				}
			}
			if !matched {
				return nil
			}
		}
	}

	var names []string
	for _, kind := range childKinds(segments) {
		slice, ok := contextCache.Get(kind, parentPath(kind, segments))
		if !ok {
			continue
		}
		names = append(names, entryNames(slice.Entries)...)
	}
	return names
}

func childKinds(segments []nav.Segment) []cluster.Kind {
	if len(segments) == 0 {
		return []cluster.Kind{cluster.KindNamespace, cluster.KindNode}
	}
	switch segments[len(segments)-1].Kind {
	case cluster.KindNamespace:
		return []cluster.Kind{cluster.KindPod}
	case cluster.KindPod:
		return []cluster.Kind{cluster.KindContainer}
	}
	return nil
}

func parentPath(kind cluster.Kind, segments []nav.Segment) string {
	snap := nav.Snapshot{Segments: segments}
	switch kind {
	case cluster.KindPod:
		return snap.Namespace()
	case cluster.KindContainer:
		return cluster.ContainerParent(snap.Namespace(), snap.Pod())
	}
	return ""
}

func entryNames(entries []cluster.Entry) []string {
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	return names
}

// suffixes returns the unmatched tail of every name the word prefixes,
// the shape readline expects from a completer.
func suffixes(names []string, word string) ([][]rune, int) {
	var out [][]rune
	for _, name := range names {
		if strings.HasPrefix(name, word) && name != word {
			out = append(out, []rune(name[len(word):]))
		}
	}
	return out, len([]rune(word))
}
