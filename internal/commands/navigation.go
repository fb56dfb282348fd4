package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goyalankit/click/internal/cache"
	"github.com/goyalankit/click/internal/cluster"
	"github.com/goyalankit/click/internal/nav"
)

func runList(ctx context.Context, inv Invocation) error {
	if len(inv.Args) > 0 {
		return usagef("ls takes no arguments")
	}

	kinds := inv.Nav.ChildKinds()
	if len(kinds) == 0 {
		fmt.Fprintf(inv.Out, "nothing beneath a %s\n", inv.Nav.At())
		return nil
	}

	for i, kind := range kinds {
		parent := inv.Nav.ChildParent(kind)
		slice, ok := inv.Cache.Get(kind, parent)
		if !ok {
			var err error
			slice, err = inv.Cache.Refresh(ctx, kind, parent)
			if err != nil {
				return err
			}
		}
		if i > 0 {
			fmt.Fprintln(inv.Out)
		}
		writeListing(inv, kind, slice)
	}
	return nil
}

func writeListing(inv Invocation, kind cluster.Kind, slice cache.Slice) {
	if slice.Stale {
		fmt.Fprintf(inv.Out, "warning: %s listing is stale, last refreshed %s ago\n",
			kind, slice.Age().Round(time.Second))
	}
	if len(slice.Entries) == 0 {
		fmt.Fprintf(inv.Out, "no %ss found\n", kind)
		return
	}

	w := tabwriter.NewWriter(inv.Out, 0, 4, 2, ' ', 0)
	switch kind {
	case cluster.KindPod:
		fmt.Fprintln(w, "NAME\tREADY\tSTATUS\tRESTARTS\tNODE")
		for _, e := range slice.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Name, e.Meta["ready"], e.Status, e.Meta["restarts"], e.Meta["node"])
		}
	case cluster.KindContainer:
		fmt.Fprintln(w, "NAME\tSTATUS\tIMAGE")
		for _, e := range slice.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.Status, e.Meta["image"])
		}
	case cluster.KindNode:
		fmt.Fprintln(w, "NAME\tSTATUS\tVERSION")
		for _, e := range slice.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.Status, e.Meta["version"])
		}
	default:
		fmt.Fprintln(w, "NAME\tSTATUS")
		for _, e := range slice.Entries {
			fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Status)
		}
	}
	w.Flush()
}

func runChangeDir(ctx context.Context, inv Invocation) error {
	if len(inv.Args) != 1 {
		return usagef("cd takes exactly one path")
	}
	target := inv.Args[0]

	if strings.HasPrefix(target, "/") {
		inv.Nav.Reset()
		target = strings.TrimPrefix(target, "/")
	}

	for _, segment := range strings.Split(target, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			if err := inv.Nav.Ascend(1); err != nil && !errors.Is(err, nav.ErrAtRoot) {
				return err
			}
		default:
			if err := descendAny(ctx, inv.Nav, segment); err != nil {
				return err
			}
		}
	}
	return nil
}

// descendAny tries the segment against every kind selectable at the
// current depth, so "cd node-1" and "cd default" both work from root.
func descendAny(ctx context.Context, state *nav.State, name string) error {
	var lastErr error
	for _, kind := range state.ChildKinds() {
		err := state.Descend(ctx, kind, name)
		if err == nil {
			return nil
		}
		if !errors.Is(err, nav.ErrNotFound) {
			return err
		}
		lastErr = err
	}
	if lastErr == nil {
		return fmt.Errorf("%q: %w", name, nav.ErrNotSelectable)
	}
	return lastErr
}

func runContext(ctx context.Context, inv Invocation) error {
	switch len(inv.Args) {
	case 0:
		return writeContextList(inv)
	case 1:
		if err := inv.Session.Switch(ctx, inv.Args[0]); err != nil {
			return err
		}
		fmt.Fprintf(inv.Out, "switched to context %s\n", inv.Args[0])
		return nil
	}
	return usagef("ctx takes at most one name")
}

func writeContextList(inv Invocation) error {
	w := tabwriter.NewWriter(inv.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CURRENT\tNAME\tSERVER\tSTATUS")
	for _, cs := range inv.Session.Contexts() {
		marker := ""
		if cs.Current {
			marker = "*"
		}
		status := string(cs.Status)
		if cs.Err != nil {
			status = fmt.Sprintf("%s (%v)", status, cs.Err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, cs.Name, cs.Server, status)
	}
	return w.Flush()
}

func runRefresh(ctx context.Context, inv Invocation) error {
	if len(inv.Args) > 0 {
		return usagef("refresh takes no arguments")
	}
	for _, kind := range inv.Nav.ChildKinds() {
		parent := inv.Nav.ChildParent(kind)
		slice, err := inv.Cache.Refresh(ctx, kind, parent)
		if err != nil {
			return err
		}
		fmt.Fprintf(inv.Out, "refreshed %d %s(s)\n", len(slice.Entries), kind)
	}
	return nil
}
