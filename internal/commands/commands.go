// Package commands provides slash command handling for the REPL.
package commands

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Quit is returned by /quit and /exit to end the session.
const Quit = "__QUIT__"

// Handler is a function that handles a slash command.
// It receives the arguments after the command name and returns output text.
type Handler func(args string) string

// Registry holds all registered slash commands.
type Registry struct {
	commands map[string]entry
}

type entry struct {
	handler     Handler
	usage       string
	description string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]entry)}
}

// Register adds a command to the registry. usage documents the arguments, e.g. "[name]".
func (r *Registry) Register(name, usage, description string, handler Handler) {
	r.commands[name] = entry{handler: handler, usage: usage, description: description}
}

// Execute runs a slash command. Returns the command output and whether the input was a command.
func (r *Registry) Execute(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	name, args, _ := strings.Cut(input[1:], " ")
	args = strings.TrimSpace(args)

	e, ok := r.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command: /%s. Type /help for available commands.", name), true
	}
	return e.handler(args), true
}

// IsCommand reports whether the input starts with a slash command prefix.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// Callbacks holds the session hooks behind the default commands. Nil hooks
// make their command report that it is not configured.
type Callbacks struct {
	OnMode      func(args string) string
	OnModel     func(args string) string
	OnAvailable func() string
	OnPipeline  func() string
	OnState     func() string
	OnConfig    func() string
}

// RegisterDefaults registers the standard set of slash commands.
func RegisterDefaults(r *Registry, cb Callbacks) {
	r.Register("help", "", "Show available commands", func(_ string) string {
		return r.helpText()
	})
	r.Register("quit", "", "Exit the application", func(_ string) string { return Quit })
	r.Register("exit", "", "Exit the application", func(_ string) string { return Quit })
	r.Register("mode", "[name]", "Show or switch the send mode", withArgs(cb.OnMode, "Mode switching"))
	r.Register("model", "[id]", "Show or select the model for single, sweep and pipeline", withArgs(cb.OnModel, "Model selection"))
	r.Register("available", "", "List models exposed by the service", noArgs(cb.OnAvailable, "Model listing"))
	r.Register("pipeline", "", "Run the five-step reasoning pipeline", noArgs(cb.OnPipeline, "Pipeline"))
	r.Register("state", "", "Show the current state", noArgs(cb.OnState, "State display"))
	r.Register("config", "", "Show current configuration", noArgs(cb.OnConfig, "Configuration display"))
}

func withArgs(fn func(string) string, what string) Handler {
	return func(args string) string {
		if fn == nil {
			return what + " not configured."
		}
		return fn(args)
	}
}

func noArgs(fn func() string, what string) Handler {
	return func(_ string) string {
		if fn == nil {
			return what + " not configured."
		}
		return fn()
	}
}

func (r *Registry) helpText() string {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		e := r.commands[name]
		cmd := "/" + name
		if e.usage != "" {
			cmd += " " + e.usage
		}
		sb.WriteString(fmt.Sprintf("  %-16s %s\n", cmd, e.description))
	}
	sb.WriteString("Anything else is sent as a prompt in the current mode.\n")
	return sb.String()
}
