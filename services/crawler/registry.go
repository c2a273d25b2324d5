package crawler

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Registry maps source hosts to strategies. Unregistered hosts fall back to
// the generic strategy. A registry is built once per process and passed to
// the pipeline explicitly.
type Registry struct {
	byHost   map[string]Strategy
	byName   map[string]Strategy
	fallback Strategy
	mu       sync.RWMutex
}

// NewRegistry creates a registry that falls back to the given strategy
func NewRegistry(fallback Strategy) *Registry {
	r := &Registry{
		byHost:   make(map[string]Strategy),
		byName:   make(map[string]Strategy),
		fallback: fallback,
	}
	r.byName[fallback.Name()] = fallback
	return r
}

// NewDefaultRegistry registers the built-in strategies for the known sources
func NewDefaultRegistry(f PageFetcher, config CrawlerConfig) *Registry {
	r := NewRegistry(NewGenericStrategy(f))

	sitemap := NewSitemapStrategy(f, config)
	r.RegisterStrategy(sitemap)

	// Blogger-hosted sources publish a full sitemap
	r.Register("keralanotes.com", sitemap)
	r.Register("ktuspecial.in", sitemap)

	return r
}

// RegisterStrategy makes a strategy selectable by name without binding a host
func (r *Registry) RegisterStrategy(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[s.Name()] = s
}

// Register binds host, with and without a leading "www.", to a strategy
func (r *Registry) Register(host string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	host = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
	r.byHost[host] = s
	r.byHost["www."+host] = s
	r.byName[s.Name()] = s
}

// For returns the strategy registered for root's host, or the fallback
func (r *Registry) For(root string) Strategy {
	u, err := url.Parse(root)
	if err != nil {
		return r.fallback
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.byHost[strings.ToLower(u.Hostname())]; ok {
		return s
	}
	return r.fallback
}

// ByName retrieves a strategy by its name
func (r *Registry) ByName(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.byName[name]
	if !exists {
		return nil, fmt.Errorf("strategy '%s' not found", name)
	}
	return s, nil
}

// Names returns all registered strategy names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
