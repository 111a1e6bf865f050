package terminal

import (
	"fmt"
	"strings"
)

// ClearSentinel tells the client to erase its terminal buffer instead of
// printing anything.
const ClearSentinel = "<CLEAR>"

const helpText = `
Available commands:
  help              - Show this help message
  ls                - List files
  cd <dir>          - Change directory
  mkdir <dir>       - Create directory
  cat <file>        - Show file contents
  echo <text>       - Print text
  npm <command>     - Run npm commands
  docker <command>  - Simulate docker commands
  clear             - Clear terminal
`

const listing = "index.html\nstyles.css\napp.js\npackage.json\nnode_modules/"

type prefixRule struct {
	prefix string
	render func(rest string) string
}

// Prefix rules are tried in order after the exact matches.
var prefixRules = []prefixRule{
	{"cd ", func(rest string) string { return "Changed directory to " + rest }},
	{"mkdir ", func(rest string) string { return "Created directory " + rest }},
	{"cat ", func(rest string) string {
		return fmt.Sprintf("Simulated content of %s:\n\n# This is a simulated file content", rest)
	}},
	{"echo ", func(rest string) string { return rest }},
	{"npm ", func(rest string) string {
		return fmt.Sprintf("Executing npm command: %s\n\n> VibeCode@1.0.0 %s\n> Simulated npm output...", rest, rest)
	}},
	{"docker ", func(rest string) string {
		return fmt.Sprintf("Simulating docker command: %s\nSimulated docker output...", rest)
	}},
}

// Resolve evaluates a command against the fixed rule set. It keeps no state
// between calls: cd does not change what later commands see.
func Resolve(command string) string {
	switch strings.TrimSpace(command) {
	case "help":
		return helpText
	case "ls":
		return listing
	case "clear":
		return ClearSentinel
	}

	for _, rule := range prefixRules {
		if rest, ok := strings.CutPrefix(command, rule.prefix); ok {
			return rule.render(rest)
		}
	}
	return fmt.Sprintf("Command not found: %s\nType 'help' for available commands.", command)
}

// StartsProcess reports whether a command simulates a long-running process
// that emits log lines after it replies.
func StartsProcess(command string) bool {
	return strings.Contains(command, "start") || strings.Contains(command, "run")
}
