package commands

import (
	"fmt"

	"github.com/sahilm/fuzzy"
)

// Registry holds all registered commands and resolves verbs, including
// aliases.
type Registry struct {
	commands []*Command
	byName   map[string]*Command
}

// NewRegistry builds the registry with the built-in command set.
func NewRegistry() *Registry {
	r := &Registry{byName: map[string]*Command{}}
	for _, cmd := range builtins() {
		r.register(cmd)
	}
	return r
}

func (r *Registry) register(cmd *Command) {
	r.commands = append(r.commands, cmd)
	r.byName[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.byName[alias] = cmd
	}
}

// Lookup resolves a verb or alias; nil when unknown.
func (r *Registry) Lookup(verb string) *Command {
	return r.byName[verb]
}

// All returns the commands in registration order.
func (r *Registry) All() []*Command {
	return r.commands
}

// Names returns every primary command name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for _, cmd := range r.commands {
		names = append(names, cmd.Name)
	}
	return names
}

// Filter fuzzy-matches command names against a query, ranked best first.
// An empty query returns everything.
func (r *Registry) Filter(query string) []*Command {
	if query == "" {
		return r.All()
	}
	matches := fuzzy.Find(query, r.Names())
	result := make([]*Command, 0, len(matches))
	for _, match := range matches {
		result = append(result, r.commands[match.Index])
	}
	return result
}

// unknownVerb builds the lookup-failure error, suggesting the closest
// fuzzy match when one ranks.
func unknownVerb(r *Registry, verb string) error {
	if matches := r.Filter(verb); len(matches) > 0 {
		return fmt.Errorf("%w: %q, did you mean '%s'?", ErrUnknownCommand, verb, matches[0].Name)
	}
	return fmt.Errorf("%w: %q (try 'help')", ErrUnknownCommand, verb)
}

func builtins() []*Command {
	return []*Command{
		{
			Name:    "ls",
			Summary: "List resources under the current path",
			Usage:   "ls",
			Needs:   NeedsContext,
			Run:     runList,
		},
		{
			Name:    "cd",
			Summary: "Change selection (cd ns/pod, cd .., cd /)",
			Usage:   "cd <path>",
			Needs:   NeedsContext,
			Run:     runChangeDir,
		},
		{
			Name:    "ctx",
			Aliases: []string{"context", "contexts"},
			Summary: "List contexts or switch to one",
			Usage:   "ctx [name]",
			Run:     runContext,
		},
		{
			Name:    "refresh",
			Summary: "Force a re-fetch of listings under the current path",
			Usage:   "refresh",
			Needs:   NeedsContext,
			Run:     runRefresh,
		},
		{
			Name:    "describe",
			Aliases: []string{"desc"},
			Summary: "Describe the selected resource",
			Usage:   "describe",
			Needs:   NeedsContext,
			Run:     runDescribe,
		},
		{
			Name:    "yaml",
			Summary: "Print the selected resource as YAML",
			Usage:   "yaml",
			Needs:   NeedsContext,
			Run:     runYAML,
		},
		{
			Name:      "logs",
			Summary:   "Stream logs from the selected pod",
			Usage:     "logs [-f] [-p] [-T] [-t lines] [-c container]",
			Needs:     NeedsPod,
			Streaming: true,
			Run:       runLogs,
		},
		{
			Name:      "exec",
			Summary:   "Run a command in the selected pod",
			Usage:     "exec [-c container] [-i] <command> [args...]",
			Needs:     NeedsPod,
			Streaming: true,
			Run:       runExec,
		},
		{
			Name:    "delete",
			Summary: "Delete the selected pod",
			Usage:   "delete [-y]",
			Needs:   NeedsPod,
			Run:     runDelete,
		},
		{
			Name:    "help",
			Aliases: []string{"?"},
			Summary: "Show available commands",
			Usage:   "help [command]",
			Run:     runHelp,
		},
		{
			Name:    "quit",
			Aliases: []string{"exit"},
			Summary: "Leave the shell",
			Usage:   "quit",
			Run:     runQuit,
		},
	}
}
