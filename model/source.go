package model

import (
	"net/url"
	"strings"
)

// Source is one configured site root and, optionally, the strategy to use for it
type Source struct {
	URL      string `yaml:"url" json:"url" validate:"required,url"`
	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
}

// Host returns the lowercased host of the source root, used as the source name
func (s Source) Host() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// SourcesFromURLs wraps plain URLs as sources with no strategy override
func SourcesFromURLs(urls ...string) []Source {
	sources := make([]Source, 0, len(urls))
	for _, u := range urls {
		sources = append(sources, Source{URL: u})
	}
	return sources
}
