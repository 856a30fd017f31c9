package docker

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"dockdash/internal/state"
)

// ParseError reports listing output that does not have the expected shape.
type ParseError struct {
	Line string
	Msg  string
}

func (e *ParseError) Error() string {
	line := e.Line
	if len(line) > 80 {
		line = line[:80] + "..."
	}
	return fmt.Sprintf("unexpected docker output (%s): %q", e.Msg, line)
}

// ContainerName returns the first of a comma separated Names field without
// its leading slash.
func ContainerName(raw string) string {
	first, _, _ := strings.Cut(raw, ",")
	return strings.TrimPrefix(strings.TrimSpace(first), "/")
}

// parsePS decodes `ps --format {{json .}}` output, one object per line.
func parsePS(out []byte) ([]state.Process, error) {
	var procs []state.Process
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			return nil, &ParseError{Line: line, Msg: "invalid json"}
		}
		row := gjson.Parse(line)
		if !row.IsObject() {
			return nil, &ParseError{Line: line, Msg: "not an object"}
		}
		id := row.Get("ID").String()
		if id == "" {
			return nil, &ParseError{Line: line, Msg: "missing ID"}
		}
		name := ContainerName(row.Get("Names").String())
		if name == "" {
			name = shortID(id)
		}
		procs = append(procs, state.Process{
			ID:     id,
			Name:   name,
			Kind:   state.KindContainer,
			State:  state.ParseLifecycle(row.Get("State").String()),
			Status: row.Get("Status").String(),
			Image:  row.Get("Image").String(),
		})
	}
	sort.SliceStable(procs, func(i, j int) bool {
		return strings.ToLower(procs[i].Name) < strings.ToLower(procs[j].Name)
	})
	return procs, nil
}

// parseInspectPorts maps container id to its ports from a batched inspect.
func parseInspectPorts(out []byte) map[string][]state.Port {
	result := make(map[string][]state.Port)
	gjson.ParseBytes(out).ForEach(func(_, item gjson.Result) bool {
		id := item.Get("Id").String()
		if id == "" {
			return true
		}
		result[id] = portsFrom(item.Get("NetworkSettings.Ports"))
		return true
	})
	return result
}

// portsFrom decodes a NetworkSettings.Ports object such as
// {"3000/tcp": [{"HostIp": "0.0.0.0", "HostPort": "3000"}], "5432/tcp": null}.
func portsFrom(obj gjson.Result) []state.Port {
	var ports []state.Port
	obj.ForEach(func(key, bindings gjson.Result) bool {
		privRaw, proto, found := strings.Cut(key.String(), "/")
		if !found || proto == "" {
			proto = "tcp"
		}
		priv, err := strconv.ParseUint(privRaw, 10, 16)
		if err != nil {
			return true
		}
		if !bindings.IsArray() || len(bindings.Array()) == 0 {
			ports = append(ports, state.Port{Private: uint16(priv), Proto: proto})
			return true
		}
		for _, b := range bindings.Array() {
			pub, _ := strconv.ParseUint(b.Get("HostPort").String(), 10, 16)
			ports = append(ports, state.Port{
				IP:      b.Get("HostIp").String(),
				Private: uint16(priv),
				Public:  uint16(pub),
				Proto:   proto,
			})
		}
		return true
	})
	return ports
}

// namedVolumes returns the volume names mounted by the first inspected
// container.
func namedVolumes(out []byte) []string {
	var vols []string
	for _, m := range gjson.GetBytes(out, "0.Mounts").Array() {
		if m.Get("Type").String() != "volume" {
			continue
		}
		if name := m.Get("Name").String(); name != "" {
			vols = append(vols, name)
		}
	}
	return vols
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
