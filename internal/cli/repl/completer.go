package repl

import (
	"slices"
	"strings"

	"github.com/yndnr/kvmesh-go/internal/server/redisserver"
)

// builtins are handled by the REPL itself and never sent to the server.
var builtins = []string{"HELP", "EXIT", "CLEAR"}

// Completer provides command name completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer seeded with the server command table and
// the REPL built-ins.
func NewCompleter() *Completer {
	cmds := append(redisserver.Commands(), builtins...)
	slices.Sort(cmds)
	return &Completer{commands: slices.Compact(cmds)}
}

// Complete returns the command names starting with prefix, ignoring case.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.ToUpper(prefix)
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
