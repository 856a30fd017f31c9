// Package config resolves dashboard settings from .dockdash.yml, .env files
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dockdash/internal/tasks"
)

const DefaultFile = ".dockdash.yml"

type Config struct {
	Title            string      `yaml:"title"`
	DockerBin        string      `yaml:"docker_bin"`
	Profile          string      `yaml:"profile"`
	MaxLogLines      int         `yaml:"max_log_lines"`
	RefreshMS        int         `yaml:"refresh_ms"`
	LogTail          int         `yaml:"log_tail"`
	CommandTimeoutMS *int        `yaml:"command_timeout_ms"`
	SidebarWidth     int         `yaml:"sidebar_width"`
	Shell            string      `yaml:"shell"`
	Theme            string      `yaml:"theme"`
	Init             CommandList `yaml:"init"`
	AutoComposeUp    *bool       `yaml:"auto_compose_up"`
	StackContainers  []string    `yaml:"stack_containers"`
	Tasks            []TaskDef   `yaml:"tasks"`
	PackageScripts   *bool       `yaml:"package_scripts"`
	LogFile          string      `yaml:"log_file"`

	// Root is the project directory commands run in.
	Root string `yaml:"-"`
	// Path is the config file, which may not exist.
	Path string `yaml:"-"`
	// EnvFiles lists the .env files that were loaded.
	EnvFiles []string `yaml:"-"`
}

type TaskDef struct {
	Name   string      `yaml:"name"`
	Cmd    CommandList `yaml:"cmd"`
	Source string      `yaml:"-"`
}

// Options are the command-line inputs to Load. Empty fields are unset.
type Options struct {
	Path    string
	Root    string
	Profile string
	Theme   string
}

// Load resolves the full configuration: file, then .env files, then
// environment overlays and flags, then defaults and validation. A missing
// config file is not an error.
func Load(opts Options) (Config, error) {
	root := opts.Root
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Config{}, err
		}
		root = FindProjectRoot(cwd)
	}
	path := opts.Path
	if path == "" {
		path = filepath.Join(root, DefaultFile)
	}

	cfg, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg.Root, cfg.Path = root, path

	envFiles, err := loadDotEnv(root, func() string { return resolveProfile(opts.Profile, cfg.Profile, os.LookupEnv) })
	if err != nil {
		return Config{}, err
	}
	cfg.EnvFiles = envFiles
	cfg.Profile = resolveProfile(opts.Profile, cfg.Profile, os.LookupEnv)
	if opts.Theme != "" {
		cfg.Theme = opts.Theme
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func readFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	for i := range cfg.Tasks {
		cfg.Tasks[i].Source = "config"
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.Title == "" {
		c.Title = filepath.Base(c.Root)
		if c.Title == "." || c.Title == string(filepath.Separator) || c.Title == "" {
			c.Title = "dockdash"
		}
	}
	c.DockerBin = strings.TrimSpace(c.DockerBin)
	if c.DockerBin == "" {
		c.DockerBin = "docker"
	}
	if c.MaxLogLines == 0 {
		c.MaxLogLines = 1200
	}
	if c.RefreshMS == 0 {
		c.RefreshMS = 1000
	}
	if c.LogTail == 0 {
		c.LogTail = 200
	}
	if c.CommandTimeoutMS == nil {
		timeout := 30000
		c.CommandTimeoutMS = &timeout
	}
	if c.SidebarWidth == 0 {
		c.SidebarWidth = 40
	}
	c.Shell = strings.TrimSpace(c.Shell)
	if c.Shell == "" {
		c.Shell = strings.TrimSpace(os.Getenv("SHELL"))
		if c.Shell == "" {
			c.Shell = "/bin/sh"
		}
	}
	c.Theme = strings.ToLower(strings.TrimSpace(c.Theme))
	c.Init = c.Init.normalized()
	if c.AutoComposeUp == nil {
		yes := true
		c.AutoComposeUp = &yes
	}
	if len(c.StackContainers) == 0 {
		c.StackContainers = []string{"supabase-db", "supabase-storage"}
	}
	if c.PackageScripts == nil {
		yes := true
		c.PackageScripts = &yes
	}
	c.LogFile = strings.TrimSpace(c.LogFile)

	for i := range c.Tasks {
		t := &c.Tasks[i]
		t.Name = strings.TrimSpace(t.Name)
		t.Cmd = t.Cmd.normalized()
		if t.Name == "" && len(t.Cmd) > 0 {
			if fields := strings.Fields(t.Cmd[0]); len(fields) > 0 {
				t.Name = fields[0]
			}
		}
	}

	if *c.PackageScripts {
		scripts, err := PackageScripts(c.Root)
		if err != nil {
			return err
		}
		for _, s := range scripts {
			if !slices.ContainsFunc(c.Tasks, func(t TaskDef) bool { return t.Name == s.Name }) {
				c.Tasks = append(c.Tasks, s)
			}
		}
	}
	slices.SortStableFunc(c.Tasks, func(a, b TaskDef) int { return strings.Compare(a.Name, b.Name) })
	return nil
}

func (c Config) validate() error {
	if c.Init.hasEmpty() {
		return fmt.Errorf("init commands must be non-empty")
	}
	if c.Theme != "" && c.Theme != "auto" && c.Theme != "light" && c.Theme != "dark" {
		return fmt.Errorf("theme must be one of auto, light, or dark")
	}
	if c.MaxLogLines < 1 {
		return fmt.Errorf("max_log_lines must be positive")
	}
	if c.RefreshMS < 100 {
		return fmt.Errorf("refresh_ms must be at least 100")
	}
	if c.LogTail < 0 {
		return fmt.Errorf("log_tail must not be negative")
	}
	if *c.CommandTimeoutMS < 0 {
		return fmt.Errorf("command_timeout_ms must not be negative")
	}
	if c.SidebarWidth < 16 {
		return fmt.Errorf("sidebar_width must be at least 16")
	}

	names := map[string]struct{}{}
	for _, t := range c.Tasks {
		if t.Name == "" {
			return fmt.Errorf("task name is required")
		}
		if len(t.Cmd) == 0 {
			return fmt.Errorf("task %q is missing cmd", t.Name)
		}
		if t.Cmd.hasEmpty() {
			return fmt.Errorf("task %q has empty commands", t.Name)
		}
		if _, ok := names[t.Name]; ok {
			return fmt.Errorf("duplicate task name %q", t.Name)
		}
		names[t.Name] = struct{}{}
	}
	return nil
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMS) * time.Millisecond
}

// CommandTimeout is zero when disabled.
func (c Config) CommandTimeout() time.Duration {
	if c.CommandTimeoutMS == nil {
		return 0
	}
	return time.Duration(*c.CommandTimeoutMS) * time.Millisecond
}

func (c Config) AutoCompose() bool {
	return c.AutoComposeUp == nil || *c.AutoComposeUp
}

// TaskDefs converts the resolved task list for the task runner.
func (c Config) TaskDefs() []tasks.Def {
	defs := make([]tasks.Def, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		defs = append(defs, tasks.Def{Name: t.Name, Commands: slices.Clone([]string(t.Cmd)), Source: t.Source})
	}
	return defs
}

// WatchPaths are the files whose changes should reload the task list.
func (c Config) WatchPaths() []string {
	paths := []string{c.Path, filepath.Join(c.Root, ".env"), filepath.Join(c.Root, ".env."+c.Profile)}
	if c.PackageScripts == nil || *c.PackageScripts {
		paths = append(paths, filepath.Join(c.Root, "package.json"))
	}
	return paths
}
