package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/goyalankit/click/internal/cluster"
)

func runLogs(ctx context.Context, inv Invocation) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	follow := fs.Bool("f", false, "follow the stream")
	previous := fs.Bool("p", false, "logs from the previous instance")
	timestamps := fs.Bool("T", false, "prefix each line with its timestamp")
	tail := fs.Int64("t", 0, "only the last N lines")
	container := fs.String("c", "", "container name")
	if err := fs.Parse(inv.Args); err != nil {
		return usagef("logs: %v", err)
	}
	if fs.NArg() > 0 {
		return usagef("logs: unexpected argument %q", fs.Arg(0))
	}

	opts := cluster.LogOptions{
		Container:  pickContainer(inv, *container),
		Follow:     *follow,
		Previous:   *previous,
		Timestamps: *timestamps,
	}
	if *tail > 0 {
		opts.TailLines = tail
	}

	namespace, pod := inv.Path.Namespace(), inv.Path.Pod()
	stream, err := inv.Conn.StreamLogs(ctx, namespace, pod, opts)
	if err != nil {
		return err
	}
	defer stream.Close()

	// A blocked Read does not observe ctx; closing the stream unblocks it.
	go func() {
		<-ctx.Done()
		stream.Close()
	}()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fmt.Fprintln(inv.Out, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return err
	}
	return ctx.Err()
}

// pickContainer prefers an explicit -c flag, then the selected container.
// Empty means the server picks the pod's only (or default) container.
func pickContainer(inv Invocation, flagged string) string {
	if flagged != "" {
		return flagged
	}
	return inv.Path.Container()
}

func runExec(ctx context.Context, inv Invocation) error {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	container := fs.String("c", "", "container name")
	interactive := fs.Bool("i", false, "interactive, attach stdin with a TTY")
	if err := fs.Parse(inv.Args); err != nil {
		return usagef("exec: %v", err)
	}
	if fs.NArg() == 0 {
		return usagef("exec requires a command")
	}

	streams := cluster.ExecStreams{Out: inv.Out, ErrOut: inv.Out}
	if *interactive {
		streams.In = inv.In
		streams.TTY = true
	}

	namespace, pod := inv.Path.Namespace(), inv.Path.Pod()
	return inv.Conn.Exec(ctx, namespace, pod, pickContainer(inv, *container), fs.Args(), streams)
}
