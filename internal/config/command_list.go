package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CommandList accepts a single command, a list of commands, or a list of
// {cmd: ...} mappings.
type CommandList []string

func (c *CommandList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		return nil
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			return nil
		}
		if cmd := strings.TrimSpace(value.Value); cmd != "" {
			*c = CommandList{cmd}
		} else {
			*c = nil
		}
		return nil
	case yaml.SequenceNode:
		cmds := make(CommandList, 0, len(value.Content))
		for _, node := range value.Content {
			cmd, err := commandFromNode(node)
			if err != nil {
				return err
			}
			cmds = append(cmds, cmd)
		}
		*c = cmds
		return nil
	default:
		return fmt.Errorf("line %d: commands must be a string or list", value.Line)
	}
}

func commandFromNode(node *yaml.Node) (string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return strings.TrimSpace(node.Value), nil
	case yaml.MappingNode:
		var item struct {
			Cmd string `yaml:"cmd"`
		}
		if err := node.Decode(&item); err != nil {
			return "", err
		}
		return strings.TrimSpace(item.Cmd), nil
	default:
		return "", fmt.Errorf("line %d: commands must be strings", node.Line)
	}
}

// MarshalYAML writes a single command as a scalar.
func (c CommandList) MarshalYAML() (any, error) {
	if len(c) == 1 {
		return c[0], nil
	}
	return []string(c), nil
}

func (c CommandList) hasEmpty() bool {
	for _, cmd := range c {
		if strings.TrimSpace(cmd) == "" {
			return true
		}
	}
	return false
}

func (c CommandList) normalized() CommandList {
	if len(c) == 0 {
		return nil
	}
	out := make(CommandList, 0, len(c))
	for _, cmd := range c {
		out = append(out, strings.TrimSpace(cmd))
	}
	return out
}
