package tasks

import "strings"

// BuildShellCommand prefixes the init commands to the task's commands. Init
// failures do not stop the task; a failing task command stops the rest.
func BuildShellCommand(init []string, commands []string) string {
	var prelude []string
	for _, cmd := range init {
		if strings.TrimSpace(cmd) != "" {
			prelude = append(prelude, cmd)
		}
	}
	body := joinCommands(commands)
	if body != "" {
		prelude = append(prelude, body)
	}
	return strings.Join(prelude, "; ")
}

func joinCommands(commands []string) string {
	var parts []string
	for _, cmd := range commands {
		if cmd = strings.TrimSpace(cmd); cmd != "" {
			parts = append(parts, cmd)
		}
	}
	return strings.Join(parts, " && ")
}
