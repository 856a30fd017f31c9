package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"dockdash/internal/config"
)

func TestDefaultConfigTemplate(t *testing.T) {
	content := defaultConfigTemplate("my-app")
	if !strings.Contains(content, "title: \"my-app\"") {
		t.Fatalf("expected title in template, got:\n%s", content)
	}

	content = defaultConfigTemplate(" ")
	if !strings.Contains(content, "title: \"dockdash\"") {
		t.Fatalf("expected default title, got:\n%s", content)
	}
}

func TestDefaultConfigTemplateParses(t *testing.T) {
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(defaultConfigTemplate("shop")), &cfg); err != nil {
		t.Fatalf("template does not parse: %v", err)
	}
	if len(cfg.Tasks) != 2 || cfg.Tasks[1].Name != "seed" || len(cfg.Tasks[1].Cmd) != 2 {
		t.Fatalf("unexpected tasks: %+v", cfg.Tasks)
	}
	if cfg.AutoComposeUp == nil || !*cfg.AutoComposeUp {
		t.Fatalf("expected auto_compose_up true")
	}
}

func TestRunInitCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFile)
	if err := runInit(path); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}

	base := filepath.Base(dir)
	if !strings.Contains(string(data), "title: \""+base+"\"") {
		t.Fatalf("expected title %q in config", base)
	}
}

func TestRunInitExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFile)
	if err := os.WriteFile(path, []byte("title: test\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := runInit(path); err == nil {
		t.Fatalf("expected error for existing file")
	}
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dash.yml")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"init", "--config", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "Created "+path) {
		t.Fatalf("unexpected output %q", out.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
}
