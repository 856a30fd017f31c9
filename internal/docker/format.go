package docker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// FormatInspect renders `inspect` JSON as the text shown in the inspect
// popup.
func FormatInspect(raw []byte) string {
	info := gjson.ParseBytes(raw)
	if info.IsArray() {
		info = info.Get("0")
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	st := info.Get("State")
	status := st.Get("Status").String()
	if status == "" {
		status = "unknown"
	}
	line("ID: %s", shortID(info.Get("Id").String()))
	line("Image: %s", info.Get("Config.Image").String())
	line("Status: %s (Pid: %d, Exit: %d)", status, st.Get("Pid").Int(), st.Get("ExitCode").Int())
	line("Created: %s", info.Get("Created").String())
	line("")

	line("PORTS:")
	ports := info.Get("NetworkSettings.Ports")
	if !ports.IsObject() || len(ports.Map()) == 0 {
		line("  (none)")
	} else {
		ports.ForEach(func(key, bindings gjson.Result) bool {
			if !bindings.IsArray() {
				line("  %s (not exposed)", key.String())
				return true
			}
			var mapped []string
			for _, p := range bindings.Array() {
				hostPort := p.Get("HostPort").String()
				if hostPort == "" {
					continue
				}
				hostIP := p.Get("HostIp").String()
				if hostIP == "" {
					hostIP = "0.0.0.0"
				}
				mapped = append(mapped, hostIP+":"+hostPort)
			}
			line("  %s -> %s", key.String(), strings.Join(mapped, ", "))
			return true
		})
	}
	line("")

	line("MOUNTS:")
	mounts := info.Get("Mounts").Array()
	if len(mounts) == 0 {
		line("  (none)")
	}
	for _, m := range mounts {
		line("  %s: %s -> %s", m.Get("Type").String(), m.Get("Source").String(), m.Get("Destination").String())
	}
	line("")

	line("ENV VARIABLES:")
	var env []string
	for _, e := range info.Get("Config.Env").Array() {
		env = append(env, e.String())
	}
	sort.Strings(env)
	if len(env) == 0 {
		line("  (none)")
	}
	for _, e := range env {
		line("  %s", e)
	}

	return strings.TrimRight(b.String(), "\n")
}
