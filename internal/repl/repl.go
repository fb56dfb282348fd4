// Package repl is the interactive front end: a readline loop that feeds
// lines to the dispatcher and renders outcomes, with tab completion over
// commands and cached resource names.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"

	"github.com/goyalankit/click/internal/commands"
	"github.com/goyalankit/click/internal/logging"
	"github.com/goyalankit/click/internal/session"
)

var (
	contextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	pathStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	cancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// REPL drives the interactive loop. The loop goroutine owns the session
// and navigation; only interrupts arrive from outside.
type REPL struct {
	dispatcher *commands.Dispatcher
	session    *session.Session
	log        *logging.Logger
}

// New wires the loop over an existing dispatcher and session.
func New(dispatcher *commands.Dispatcher, sess *session.Session) *REPL {
	return &REPL{
		dispatcher: dispatcher,
		session:    sess,
		log:        logging.Get().With("component", "repl"),
	}
}

// Run blocks until quit, EOF, or ctx cancellation.
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            r.prompt(),
		HistoryFile:       historyFile(),
		AutoComplete:      NewCompleter(r.dispatcher.Registry(), r.session),
		InterruptPrompt:   "^C",
		EOFPrompt:         "quit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	// Ctrl-C during a running command lands here as SIGINT; at the prompt
	// readline swallows it and returns ErrInterrupt instead.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-sigCh:
				r.dispatcher.Interrupt()
			case <-stop:
				return
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		rl.SetPrompt(r.prompt())
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("read input: %w", err)
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		outcome := r.dispatcher.Execute(ctx, line)
		r.render(rl.Stdout(), outcome)
		if outcome.Quit {
			return nil
		}
	}
}

func (r *REPL) render(out io.Writer, outcome commands.Outcome) {
	switch outcome.Status {
	case commands.StatusFailed:
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("error [%s]: %v", outcome.Kind, outcome.Err)))
	case commands.StatusCancelled:
		fmt.Fprintln(out, cancelledStyle.Render("cancelled"))
	}
}

// prompt renders context/path, e.g. "prod/default/web-1> ".
func (r *REPL) prompt() string {
	snap := r.session.Nav().Snapshot()
	if snap.Context == "" {
		return contextStyle.Render("click") + "> "
	}
	var b strings.Builder
	b.WriteString(contextStyle.Render(snap.Context))
	for _, seg := range snap.Segments {
		b.WriteString(pathStyle.Render("/" + seg.Name))
	}
	b.WriteString("> ")
	return b.String()
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".click_history")
	}
	return filepath.Join(home, ".click", "history")
}
