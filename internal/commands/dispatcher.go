package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/goyalankit/click/internal/cluster"
	"github.com/goyalankit/click/internal/identity"
	"github.com/goyalankit/click/internal/logging"
	"github.com/goyalankit/click/internal/nav"
	"github.com/goyalankit/click/internal/session"
)

// task is one in-flight invocation. Exactly one interrupt-triggered
// cancellation is honored per task.
type task struct {
	cancel      context.CancelFunc
	done        chan struct{}
	interruptMu sync.Mutex
	interrupted bool
}

func (t *task) interrupt() bool {
	t.interruptMu.Lock()
	defer t.interruptMu.Unlock()
	if t.interrupted {
		return false
	}
	t.interrupted = true
	t.cancel()
	return true
}

func (t *task) wasInterrupted() bool {
	t.interruptMu.Lock()
	defer t.interruptMu.Unlock()
	return t.interrupted
}

// Dispatcher executes one line at a time against the session. The
// foreground loop owns it; Interrupt is the only method safe to call from
// another goroutine.
type Dispatcher struct {
	registry *Registry
	session  *session.Session
	out      io.Writer
	in       io.Reader
	grace    time.Duration
	log      *logging.Logger

	mu      sync.Mutex
	current *task
}

// NewDispatcher wires the dispatcher. grace bounds how long a cancelled
// task may take to stop before a warning is logged.
func NewDispatcher(registry *Registry, sess *session.Session, out io.Writer, in io.Reader, grace time.Duration) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		session:  sess,
		out:      out,
		in:       in,
		grace:    grace,
		log:      logging.Get().With("component", "dispatcher"),
	}
}

// Registry exposes the command table (for completion).
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Execute parses, resolves, and runs one input line. The command sees the
// navigation path as it was at this moment.
func (d *Dispatcher) Execute(ctx context.Context, line string) Outcome {
	fields, err := splitLine(line)
	if err != nil {
		return d.failed(usagef("%v", err))
	}
	if len(fields) == 0 {
		return Outcome{Status: StatusOK}
	}

	cmd := d.registry.Lookup(fields[0])
	if cmd == nil {
		return d.failed(unknownVerb(d.registry, fields[0]))
	}

	inv, err := d.buildInvocation(cmd, fields[1:])
	if err != nil {
		return d.failed(err)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}
	d.mu.Lock()
	d.current = t
	d.mu.Unlock()

	d.log.Debug("running command", "verb", cmd.Name, "path", inv.Path.String(), "streaming", cmd.Streaming)
	err = cmd.Run(taskCtx, inv)

	close(t.done)
	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()
	cancel()

	switch {
	case t.wasInterrupted() && (err == nil || errors.Is(err, context.Canceled)):
		return Outcome{Status: StatusCancelled}
	case errors.Is(err, ErrQuit):
		return Outcome{Status: StatusOK, Quit: true}
	case err != nil:
		return d.failed(err)
	}
	return Outcome{Status: StatusOK}
}

// Interrupt cancels the in-flight task, if any. With nothing running it is
// a no-op, not an error. Safe for concurrent use (signal handler).
func (d *Dispatcher) Interrupt() {
	d.mu.Lock()
	t := d.current
	d.mu.Unlock()
	if t == nil {
		return
	}
	if !t.interrupt() {
		return
	}
	d.log.Debug("interrupt delivered")
	// Watchdog: a cancelled task must release its resources within the
	// grace period; it cannot be force-killed, only reported.
	go func() {
		select {
		case <-t.done:
		case <-time.After(d.grace):
			d.log.Warn("cancelled task did not stop within grace period", "grace", d.grace)
		}
	}()
}

func (d *Dispatcher) buildInvocation(cmd *Command, args []string) (Invocation, error) {
	inv := Invocation{
		Args:     args,
		Session:  d.session,
		Nav:      d.session.Nav(),
		Registry: d.registry,
		Out:      d.out,
		In:       d.in,
		Log:      d.log,
	}
	inv.Path = inv.Nav.Snapshot()

	if cmd.Needs == NeedsNothing {
		return inv, nil
	}

	conn, contextCache, ok := d.session.Active()
	if !ok {
		return inv, usageNoContext()
	}
	inv.Conn = conn
	inv.Cache = contextCache

	switch cmd.Needs {
	case NeedsNamespace:
		if inv.Path.Namespace() == "" {
			return inv, usageNoSelection(cmd.Name, "namespace")
		}
	case NeedsPod:
		if inv.Path.Pod() == "" {
			return inv, usageNoSelection(cmd.Name, "pod")
		}
	}
	return inv, nil
}

func (d *Dispatcher) failed(err error) Outcome {
	kind := Classify(err)
	d.log.Debug("command failed", "kind", kind, "error", err)
	return Outcome{Status: StatusFailed, Kind: kind, Err: err}
}

// Classify maps an error to its taxonomy kind. Classification happens at
// the lowest layer with enough context (identity, cluster); here it is
// only read back out.
func Classify(err error) ErrorKind {
	var reqErr *cluster.RequestFailedError
	var netErr net.Error
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return KindUnknownCommand
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNoSelection):
		return KindNoSelection
	case errors.Is(err, nav.ErrNotFound), errors.Is(err, nav.ErrNotSelectable),
		errors.Is(err, nav.ErrAtRoot), errors.Is(err, session.ErrUnknownContext):
		return KindNotFound
	case errors.Is(err, identity.ErrUnsupportedCredentialFormat),
		errors.Is(err, identity.ErrInvalidPassphrase),
		errors.Is(err, identity.ErrNoTrustPolicy):
		return KindCredential
	case errors.As(err, &reqErr), errors.As(err, &netErr):
		return KindConnection
	}
	return KindInternal
}

func usageNoContext() error {
	return fmt.Errorf("%w: no active context, use 'ctx <name>'", ErrNoSelection)
}

func usageNoSelection(verb, kind string) error {
	return fmt.Errorf("%w: %s requires a selected %s", ErrNoSelection, verb, kind)
}
