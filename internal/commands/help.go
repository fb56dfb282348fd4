package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
)

func runHelp(ctx context.Context, inv Invocation) error {
	switch len(inv.Args) {
	case 0:
	case 1:
		cmd := inv.Registry.Lookup(inv.Args[0])
		if cmd == nil {
			return unknownVerb(inv.Registry, inv.Args[0])
		}
		fmt.Fprintf(inv.Out, "%s\n  %s\n  usage: %s\n", cmd.Name, cmd.Summary, cmd.Usage)
		return nil
	default:
		return usagef("help takes at most one command name")
	}

	w := tabwriter.NewWriter(inv.Out, 0, 4, 2, ' ', 0)
	for _, cmd := range inv.Registry.All() {
		name := cmd.Name
		if len(cmd.Aliases) > 0 {
			name += " (" + strings.Join(cmd.Aliases, ", ") + ")"
		}
		fmt.Fprintf(w, "%s\t%s\n", name, cmd.Summary)
	}
	return w.Flush()
}

func runQuit(ctx context.Context, inv Invocation) error {
	if len(inv.Args) > 0 {
		return usagef("quit takes no arguments")
	}
	return ErrQuit
}
