package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/joho/godotenv"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

func resolveProfile(flag, file string, lookup LookupFunc) string {
	candidates := []string{flag}
	for _, key := range []string{"DOCKER_PROFILE", "COMPOSE_PROFILE"} {
		if v, ok := lookup(key); ok {
			candidates = append(candidates, v)
		}
	}
	candidates = append(candidates, file)
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return "local"
}

// loadDotEnv loads .env without overriding exported variables, then
// .env.<profile> with override. The profile is resolved after the base file
// so .env may select it.
func loadDotEnv(root string, profile func() string) ([]string, error) {
	var loaded []string
	base := filepath.Join(root, ".env")
	if ok, err := exists(base); err != nil {
		return nil, err
	} else if ok {
		if err := godotenv.Load(base); err != nil {
			return nil, fmt.Errorf("%s: %w", base, err)
		}
		loaded = append(loaded, base)
	}

	prof := filepath.Join(root, ".env."+profile())
	if ok, err := exists(prof); err != nil {
		return nil, err
	} else if ok {
		if err := godotenv.Overload(prof); err != nil {
			return nil, fmt.Errorf("%s: %w", prof, err)
		}
		loaded = append(loaded, prof)
	}
	return loaded, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	if v, ok := lookup("DOCKER_BIN"); ok && strings.TrimSpace(v) != "" {
		c.DockerBin = strings.TrimSpace(v)
	}
	for key, dst := range map[string]*int{"MAX_LOG_LINES": &c.MaxLogLines, "REFRESH_MS": &c.RefreshMS} {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
	}

	db, hasDB := lookup("DB_CONTAINER")
	storage, hasStorage := lookup("STORAGE_CONTAINER")
	if hasDB || hasStorage {
		if !hasDB {
			db = "supabase-db"
		}
		if !hasStorage {
			storage = "supabase-storage"
		}
		c.StackContainers = []string{strings.TrimSpace(db), strings.TrimSpace(storage)}
	}

	envTasks := ParsePostUpTasks(profileValue("POST_UP_TASKS", c.Profile, lookup))
	if len(envTasks) == 0 {
		if single := strings.TrimSpace(profileValue("POST_UP_CMD", c.Profile, lookup)); single != "" {
			envTasks = []TaskDef{{Name: "postup", Cmd: CommandList{single}, Source: "env"}}
		}
	}
	for _, et := range envTasks {
		replaced := false
		for i := range c.Tasks {
			if c.Tasks[i].Name == et.Name {
				c.Tasks[i] = et
				replaced = true
			}
		}
		if !replaced {
			c.Tasks = append(c.Tasks, et)
		}
	}
	return nil
}

// KeyForProfile returns base_PROFILE with the profile upper-cased and every
// non-alphanumeric rune replaced by an underscore.
func KeyForProfile(base, profile string) string {
	p := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, strings.TrimSpace(profile))
	if p == "" {
		return base
	}
	return base + "_" + p
}

func profileValue(base, profile string, lookup LookupFunc) string {
	if v, ok := lookup(KeyForProfile(base, profile)); ok {
		return v
	}
	v, _ := lookup(base)
	return v
}

// ParsePostUpTasks reads one "name::command" per line. Blank lines and
// lines starting with # are skipped; a line without "::" is a task named
// "task".
func ParsePostUpTasks(raw string) []TaskDef {
	var out []TaskDef
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, cmd, found := strings.Cut(line, "::")
		if !found {
			name, cmd = "task", line
		}
		name, cmd = strings.TrimSpace(name), strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		if name == "" {
			name = "task"
		}
		out = append(out, TaskDef{Name: name, Cmd: CommandList{cmd}, Source: "env"})
	}
	return out
}
