// Package commands parses REPL input, resolves it against the current
// navigation state, and executes the matched command — synchronously or as
// a cancellable streaming task.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goyalankit/click/internal/cache"
	"github.com/goyalankit/click/internal/cluster"
	"github.com/goyalankit/click/internal/logging"
	"github.com/goyalankit/click/internal/nav"
	"github.com/goyalankit/click/internal/session"
)

var (
	// ErrUnknownCommand means the verb matched no registered command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidArgument means the arguments failed arity or type checks.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoSelection means the command needs a selection the path lacks.
	ErrNoSelection = errors.New("nothing selected")
	// ErrQuit asks the REPL to exit; not a failure.
	ErrQuit = errors.New("quit")
)

// Requirement declares what a command needs selected before it can run.
type Requirement int

const (
	NeedsNothing Requirement = iota
	NeedsContext
	NeedsNamespace
	NeedsPod
)

// Invocation carries everything a command run needs, including the
// navigation path snapshot taken at dispatch time; arguments resolve
// against that snapshot even if navigation changes mid-execution.
type Invocation struct {
	Args []string
	Path nav.Snapshot

	Session  *session.Session
	Conn     cluster.Interface
	Cache    *cache.Cache
	Nav      *nav.State
	Registry *Registry

	Out io.Writer
	In  io.Reader
	Log *logging.Logger
}

// Command is one registered verb.
type Command struct {
	Name    string
	Aliases []string
	Summary string
	Usage   string
	Needs   Requirement
	// Streaming marks commands that produce output incrementally until
	// end-of-stream or cancellation.
	Streaming bool
	Run       func(ctx context.Context, inv Invocation) error
}

// Status is the terminal state of one invocation.
type Status int

const (
	StatusOK Status = iota
	StatusFailed
	StatusCancelled
)

// ErrorKind classifies a failed invocation for the caller.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindUnknownCommand  ErrorKind = "unknown-command"
	KindInvalidArgument ErrorKind = "invalid-argument"
	KindNoSelection     ErrorKind = "no-selection"
	KindNotFound        ErrorKind = "not-found"
	KindCredential      ErrorKind = "credential"
	KindConnection      ErrorKind = "connection"
	KindInternal        ErrorKind = "internal"
)

// Outcome is the structured result of one Execute call.
type Outcome struct {
	Status Status
	Kind   ErrorKind
	Err    error
	// Quit is set when the command asked the REPL to exit.
	Quit bool
}

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
