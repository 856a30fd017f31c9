package docker

import (
	"fmt"

	"dockdash/internal/state"
)

var (
	preferredPrivatePorts = []uint16{3000, 8025, 54323, 5678, 5173, 4173, 8080, 80, 1337}
	preferredPublicPorts  = []uint16{80, 3000, 8080, 54324}
)

// PickBestPort chooses the published tcp port most likely to be a web UI.
func PickBestPort(proc state.Process) (state.Port, bool) {
	tcp := proc.PublishedTCP()
	for _, want := range preferredPrivatePorts {
		for _, p := range tcp {
			if p.Private == want {
				return p, true
			}
		}
	}
	for _, want := range preferredPublicPorts {
		for _, p := range tcp {
			if p.Public == want {
				return p, true
			}
		}
	}
	if len(tcp) > 0 {
		return tcp[0], true
	}
	return state.Port{}, false
}

// Endpoint resolves the URL for a process port. index < 0 picks the best
// port, otherwise it indexes the published tcp ports.
func Endpoint(p state.Process, index int, host string) (string, error) {
	var port state.Port
	if index < 0 {
		best, ok := PickBestPort(p)
		if !ok {
			return "", fmt.Errorf("%s has no published ports", p.Name)
		}
		port = best
	} else {
		published := p.PublishedTCP()
		if index >= len(published) {
			return "", fmt.Errorf("%s has no published port #%d", p.Name, index+1)
		}
		port = published[index]
	}
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, port.Public), nil
}
