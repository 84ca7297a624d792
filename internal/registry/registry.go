// Package registry resolves tool endpoints for external collaborators
// (scoring pipeline, collectors). The store never depends on how
// endpoints are discovered; swapping the static table for a dynamic
// discovery client changes nothing upstream.
package registry

import (
	"fmt"
	"net/url"

	"github.com/weg-9000/Stock-Sentiment-Agent/internal/domain"
)

// Endpoint is a resolved tool address.
type Endpoint struct {
	Server string
	Tool   string
	URL    *url.URL
}

// Registry maps (server, tool) pairs to endpoints.
type Registry interface {
	// Resolve returns the endpoint for a tool, or domain.ErrNotFound
	// when the pair is unknown.
	Resolve(server, tool string) (Endpoint, error)
}

// Static is a fixed lookup table seeded at startup.
type Static struct {
	endpoints map[string]Endpoint
}

func NewStatic() *Static {
	return &Static{endpoints: make(map[string]Endpoint)}
}

// Register adds or replaces an endpoint. Malformed URLs are rejected
// at registration, not at resolve time.
func (s *Static) Register(server, tool, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("endpoint url for %s/%s: %w", server, tool, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return &domain.ValidationError{Field: "url", Reason: "must be absolute with scheme and host"}
	}
	s.endpoints[key(server, tool)] = Endpoint{Server: server, Tool: tool, URL: parsed}
	return nil
}

func (s *Static) Resolve(server, tool string) (Endpoint, error) {
	ep, ok := s.endpoints[key(server, tool)]
	if !ok {
		return Endpoint{}, fmt.Errorf("tool %s/%s: %w", server, tool, domain.ErrNotFound)
	}
	return ep, nil
}

func key(server, tool string) string {
	return server + "/" + tool
}
