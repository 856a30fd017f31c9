package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

// isolateEnv clears every variable Load reads for the duration of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DOCKER_BIN", "DOCKER_PROFILE", "COMPOSE_PROFILE", "MAX_LOG_LINES", "REFRESH_MS",
		"DB_CONTAINER", "STORAGE_CONTAINER", "POST_UP_TASKS", "POST_UP_CMD",
		"POST_UP_TASKS_LOCAL", "POST_UP_CMD_LOCAL", "POST_UP_TASKS_DEV",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()

	cfg, err := Load(Options{Root: root})
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(root), cfg.Title)
	assert.Equal(t, "docker", cfg.DockerBin)
	assert.Equal(t, "local", cfg.Profile)
	assert.Equal(t, 1200, cfg.MaxLogLines)
	assert.Equal(t, time.Second, cfg.RefreshInterval())
	assert.Equal(t, 30*time.Second, cfg.CommandTimeout())
	assert.Equal(t, 200, cfg.LogTail)
	assert.Equal(t, 40, cfg.SidebarWidth)
	assert.NotEmpty(t, cfg.Shell)
	assert.True(t, cfg.AutoCompose())
	assert.Equal(t, []string{"supabase-db", "supabase-storage"}, cfg.StackContainers)
	assert.Empty(t, cfg.Tasks)
	assert.Equal(t, filepath.Join(root, DefaultFile), cfg.Path)
}

func TestLoadFileAndFlags(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, DefaultFile), `title: shop
docker_bin: podman
profile: staging
refresh_ms: 500
command_timeout_ms: 0
auto_compose_up: false
theme: Dark
init: export FOO=bar
tasks:
  - name: seed
    cmd:
      - npm run seed
      - cmd: echo seeded
  - cmd: make lint
`)

	cfg, err := Load(Options{Root: root, Profile: "dev"})
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.Title)
	assert.Equal(t, "podman", cfg.DockerBin)
	assert.Equal(t, "dev", cfg.Profile)
	assert.Equal(t, 500*time.Millisecond, cfg.RefreshInterval())
	assert.Zero(t, cfg.CommandTimeout())
	assert.False(t, cfg.AutoCompose())
	assert.Equal(t, "dark", cfg.Theme)
	assert.Equal(t, CommandList{"export FOO=bar"}, cfg.Init)

	require.Len(t, cfg.Tasks, 2)
	assert.Equal(t, "make", cfg.Tasks[0].Name)
	assert.Equal(t, "seed", cfg.Tasks[1].Name)
	assert.Equal(t, CommandList{"npm run seed", "echo seeded"}, cfg.Tasks[1].Cmd)

	defs := cfg.TaskDefs()
	assert.Equal(t, "npm run seed && echo seeded", defs[1].Command())
}

func TestEnvOverlays(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, DefaultFile), `tasks:
  - name: migrate
    cmd: echo from-config
`)
	t.Setenv("DOCKER_BIN", "nerdctl")
	t.Setenv("MAX_LOG_LINES", "50")
	t.Setenv("DB_CONTAINER", "pg")
	t.Setenv("POST_UP_TASKS", "# comment\nmigrate::echo from-env\n\nworker :: npm run worker\nbare command")

	cfg, err := Load(Options{Root: root})
	require.NoError(t, err)

	assert.Equal(t, "nerdctl", cfg.DockerBin)
	assert.Equal(t, 50, cfg.MaxLogLines)
	assert.Equal(t, []string{"pg", "supabase-storage"}, cfg.StackContainers)

	byName := map[string]TaskDef{}
	for _, task := range cfg.Tasks {
		byName[task.Name] = task
	}
	assert.Equal(t, CommandList{"echo from-env"}, byName["migrate"].Cmd)
	assert.Equal(t, CommandList{"npm run worker"}, byName["worker"].Cmd)
	assert.Equal(t, CommandList{"bare command"}, byName["task"].Cmd)
}

func TestProfileTasksWinOverBase(t *testing.T) {
	isolateEnv(t)
	t.Setenv("POST_UP_TASKS", "a::echo base")
	t.Setenv("POST_UP_TASKS_DEV", "b::echo dev")

	cfg, err := Load(Options{Root: t.TempDir(), Profile: "dev"})
	require.NoError(t, err)
	require.Len(t, cfg.Tasks, 1)
	assert.Equal(t, "b", cfg.Tasks[0].Name)
}

func TestPostUpCmdFallback(t *testing.T) {
	isolateEnv(t)
	t.Setenv("POST_UP_CMD", "npm run db:seed")

	cfg, err := Load(Options{Root: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, cfg.Tasks, 1)
	assert.Equal(t, "postup", cfg.Tasks[0].Name)
	assert.Equal(t, "env", cfg.Tasks[0].Source)
}

func TestInvalidEnvInteger(t *testing.T) {
	isolateEnv(t)
	t.Setenv("REFRESH_MS", "fast")
	_, err := Load(Options{Root: t.TempDir()})
	assert.ErrorContains(t, err, "REFRESH_MS")
}

func TestDotEnvProfileOverrides(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "DOCKER_PROFILE=dev\nDOCKDASH_TEST_BASE=base\nDOCKDASH_TEST_SHARED=base\n")
	writeFile(t, filepath.Join(root, ".env.dev"), "DOCKDASH_TEST_SHARED=dev\n")
	t.Cleanup(func() {
		for _, k := range []string{"DOCKDASH_TEST_BASE", "DOCKDASH_TEST_SHARED", "DOCKER_PROFILE"} {
			_ = os.Unsetenv(k)
		}
	})

	cfg, err := Load(Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Profile)
	assert.Equal(t, []string{filepath.Join(root, ".env"), filepath.Join(root, ".env.dev")}, cfg.EnvFiles)
	assert.Equal(t, "base", os.Getenv("DOCKDASH_TEST_BASE"))
	assert.Equal(t, "dev", os.Getenv("DOCKDASH_TEST_SHARED"))
}

func TestPackageScriptsMerged(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name":"app","scripts":{"dev":"vite","test":"vitest","build":"vite build"}}`)
	writeFile(t, filepath.Join(root, DefaultFile), `tasks:
  - name: test
    cmd: make test
`)

	cfg, err := Load(Options{Root: root})
	require.NoError(t, err)

	var names []string
	for _, task := range cfg.Tasks {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"build", "dev", "test"}, names)
	assert.Equal(t, CommandList{"make test"}, cfg.Tasks[2].Cmd)
	assert.Equal(t, CommandList{"npm run dev"}, cfg.Tasks[1].Cmd)
	assert.Equal(t, "package.json", cfg.Tasks[1].Source)
}

func TestPackageScriptsDisabled(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"scripts":{"dev":"vite"}}`)
	writeFile(t, filepath.Join(root, DefaultFile), "package_scripts: false\n")

	cfg, err := Load(Options{Root: root})
	require.NoError(t, err)
	assert.Empty(t, cfg.Tasks)
}

func TestConfigValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"duplicate task name", "tasks:\n  - {name: a, cmd: echo}\n  - {name: a, cmd: ls}\n"},
		{"missing cmd", "tasks:\n  - name: a\n"},
		{"empty command", "tasks:\n  - name: a\n    cmd: [echo, '']\n"},
		{"init empty command", "init: [' ']\n"},
		{"bad theme", "theme: neon\n"},
		{"negative timeout", "command_timeout_ms: -1\n"},
		{"tiny refresh", "refresh_ms: 5\n"},
		{"narrow sidebar", "sidebar_width: 3\n"},
		{"bad yaml", "tasks: {\n"},
		{"nested command", "tasks:\n  - name: a\n    cmd: [[echo]]\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolateEnv(t)
			root := t.TempDir()
			writeFile(t, filepath.Join(root, DefaultFile), tc.yaml)
			_, err := Load(Options{Root: root})
			assert.Error(t, err)
		})
	}
}

func TestCommandListUnmarshal(t *testing.T) {
	cases := map[string]CommandList{
		"cmd: echo":                 {"echo"},
		"cmd: [echo, ls]":           {"echo", "ls"},
		"cmd: [{cmd: make}, 'ls ']": {"make", "ls"},
		"cmd: ":                     nil,
	}
	for in, want := range cases {
		var cfg struct {
			Cmd CommandList `yaml:"cmd"`
		}
		require.NoError(t, yaml.Unmarshal([]byte(in), &cfg), in)
		assert.Equal(t, want, cfg.Cmd, in)
	}
}

func TestCommandListMarshal(t *testing.T) {
	out, err := yaml.Marshal(struct {
		One  CommandList `yaml:"one"`
		Many CommandList `yaml:"many"`
	}{CommandList{"echo"}, CommandList{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "one: echo\nmany:\n    - a\n    - b\n", string(out))
}

func TestFindProjectRoot(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "docker-compose.yml"), "services: {}\n")
	writeFile(t, filepath.Join(base, "web", "package.json"), "{}")
	deep := filepath.Join(base, "web", "src", "lib")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, base, FindProjectRoot(deep))

	lone := t.TempDir()
	writeFile(t, filepath.Join(lone, "app", "package.json"), "{}")
	inner := filepath.Join(lone, "app", "src")
	require.NoError(t, os.MkdirAll(inner, 0o755))
	assert.Equal(t, filepath.Join(lone, "app"), FindProjectRoot(inner))
}

func TestKeyForProfile(t *testing.T) {
	assert.Equal(t, "POST_UP_TASKS_STAGING_EU", KeyForProfile("POST_UP_TASKS", "staging-eu"))
	assert.Equal(t, "POST_UP_TASKS", KeyForProfile("POST_UP_TASKS", " "))
}

func TestWatchDebouncesChanges(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, DefaultFile)
	writeFile(t, path, "title: one\n")

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, []string{path}, 50*time.Millisecond, zaptest.NewLogger(t), func() { calls.Add(1) })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	for i := range 5 {
		writeFile(t, path, "title: v"+string(rune('0'+i))+"\n")
	}
	writeFile(t, filepath.Join(root, "unrelated.txt"), "x")

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	require.NoError(t, <-done)
}
