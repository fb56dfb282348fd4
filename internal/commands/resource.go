package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/goyalankit/click/internal/cluster"
	"github.com/goyalankit/click/internal/nav"
)

// selectedResource maps the deepest path segment to a describable
// resource. Containers resolve to their pod; the server has no
// standalone container object.
func selectedResource(path nav.Snapshot) (cluster.Kind, string, string, error) {
	if len(path.Segments) == 0 {
		return "", "", "", fmt.Errorf("%w: select a resource first", ErrNoSelection)
	}
	last := path.Segments[len(path.Segments)-1]
	switch last.Kind {
	case cluster.KindContainer, cluster.KindPod:
		return cluster.KindPod, path.Namespace(), path.Pod(), nil
	default:
		return last.Kind, "", last.Name, nil
	}
}

func runDescribe(ctx context.Context, inv Invocation) error {
	if len(inv.Args) > 0 {
		return usagef("describe takes no arguments")
	}
	kind, namespace, name, err := selectedResource(inv.Path)
	if err != nil {
		return err
	}
	text, err := inv.Conn.Describe(kind, namespace, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(inv.Out, strings.TrimRight(text, "\n"))
	return nil
}

func runYAML(ctx context.Context, inv Invocation) error {
	if len(inv.Args) > 0 {
		return usagef("yaml takes no arguments")
	}
	kind, namespace, name, err := selectedResource(inv.Path)
	if err != nil {
		return err
	}
	doc, err := inv.Conn.ResourceYAML(ctx, kind, namespace, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(inv.Out, strings.TrimRight(doc, "\n"))
	return nil
}

func runDelete(ctx context.Context, inv Invocation) error {
	confirmed := false
	switch {
	case len(inv.Args) == 0:
	case len(inv.Args) == 1 && inv.Args[0] == "-y":
		confirmed = true
	default:
		return usagef("delete takes only -y")
	}

	namespace, pod := inv.Path.Namespace(), inv.Path.Pod()
	if !confirmed && !confirm(inv, fmt.Sprintf("delete pod %s/%s?", namespace, pod)) {
		fmt.Fprintln(inv.Out, "aborted")
		return nil
	}

	if err := inv.Conn.DeletePod(ctx, namespace, pod); err != nil {
		return err
	}

	// The pod's containers are gone with it; the pod listing changed.
	inv.Cache.Drop(cluster.KindContainer, cluster.ContainerParent(namespace, pod))
	if _, err := inv.Cache.Refresh(ctx, cluster.KindPod, namespace); err != nil {
		inv.Log.Warn("pod listing refresh after delete failed", "error", err)
	}
	ascendOffDeletedPod(inv.Nav, namespace, pod)

	fmt.Fprintf(inv.Out, "deleted pod %s/%s\n", namespace, pod)
	return nil
}

// ascendOffDeletedPod pops the live cursor back to the namespace when it
// still points at or below the pod that was just deleted.
func ascendOffDeletedPod(state *nav.State, namespace, pod string) {
	current := state.Snapshot()
	if current.Namespace() != namespace || current.Pod() != pod {
		return
	}
	levels := 0
	for i := len(current.Segments) - 1; i >= 0; i-- {
		levels++
		if current.Segments[i].Kind == cluster.KindPod {
			break
		}
	}
	_ = state.Ascend(levels)
}

func confirm(inv Invocation, prompt string) bool {
	fmt.Fprintf(inv.Out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(inv.In).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
