package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"dockdash/internal/execx"
)

// Meta describes the docker context the dashboard talks to.
type Meta struct {
	Backend   string
	Context   string
	Endpoint  string
	Host      string
	Available bool
}

func (m Meta) String() string {
	state := "up"
	if !m.Available {
		state = "unavailable"
	}
	return fmt.Sprintf("%s (%s, %s)", m.Backend, m.Context, state)
}

// Detect queries the current context and daemon availability concurrently.
// It never fails; unknown values fall back to defaults.
func Detect(ctx context.Context, r execx.Runner, bin string) Meta {
	meta := Meta{Backend: "unknown", Context: "default", Host: "localhost"}

	var g errgroup.Group
	g.Go(func() error {
		name, err := execx.Output(ctx, r, bin, "context", "show")
		if err != nil || name == "" {
			return nil
		}
		meta.Context = name
		raw, err := execx.Output(ctx, r, bin, "context", "inspect", name)
		if err != nil {
			return nil
		}
		meta.Endpoint = gjson.Get(raw, "0.Endpoints.docker.Host").String()
		meta.Host = remoteHost(meta.Endpoint)
		meta.Backend = classify(name, meta.Endpoint)
		return nil
	})
	var available bool
	g.Go(func() error {
		res, err := r.Run(ctx, bin, "info")
		available = err == nil && res.ExitCode == 0
		return nil
	})
	_ = g.Wait()
	meta.Available = available
	return meta
}

// remoteHost extracts the host from ssh:// or tcp:// endpoints; sockets are
// local.
func remoteHost(endpoint string) string {
	for _, scheme := range []string{"ssh://", "tcp://"} {
		rest, ok := strings.CutPrefix(endpoint, scheme)
		if !ok {
			continue
		}
		if i := strings.LastIndex(rest, "@"); i >= 0 {
			rest = rest[i+1:]
		}
		host, _, _ := strings.Cut(rest, ":")
		host, _, _ = strings.Cut(host, "/")
		if host != "" {
			return host
		}
	}
	return "localhost"
}

func classify(context, endpoint string) string {
	if strings.Contains(strings.ToLower(context+" "+endpoint), "colima") {
		return "colima"
	}
	return "docker"
}
