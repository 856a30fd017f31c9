package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

const maxRootDepth = 12

// FindProjectRoot walks up from start looking for docker-compose.yml. The
// nearest directory with a package.json is the fallback, then start itself.
func FindProjectRoot(start string) string {
	dir := start
	fallback := ""
	for range maxRootDepth {
		if fileExists(filepath.Join(dir, "docker-compose.yml")) {
			return dir
		}
		if fallback == "" && fileExists(filepath.Join(dir, "package.json")) {
			fallback = dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if fallback != "" {
		return fallback
	}
	return start
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// PackageScripts turns package.json scripts into tasks run through npm.
// A missing package.json yields no tasks.
func PackageScripts(root string) ([]TaskDef, error) {
	path := filepath.Join(root, "package.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: invalid json", path)
	}

	var out []TaskDef
	gjson.GetBytes(data, "scripts").ForEach(func(name, script gjson.Result) bool {
		if script.Type != gjson.String || name.String() == "" {
			return true
		}
		out = append(out, TaskDef{
			Name:   name.String(),
			Cmd:    CommandList{"npm run " + name.String()},
			Source: "package.json",
		})
		return true
	})
	return out, nil
}
