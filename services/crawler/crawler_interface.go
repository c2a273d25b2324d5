package crawler

import (
	"context"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/services/fetcher"
)

// Strategy discovers candidate download links for one source family.
// Strategies hold no per-run state and may be reused across runs.
type Strategy interface {
	// Name returns the unique identifier for this strategy
	Name() string

	// Discover walks the source rooted at root and returns every candidate link
	// found. An error means the whole source failed.
	Discover(ctx context.Context, root string) ([]model.CandidateLink, error)
}

// PageFetcher is the subset of the rate-limited fetcher strategies use
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Page, error)
	FetchRaw(ctx context.Context, url string) (*fetcher.Response, error)
}

// CrawlerConfig holds configuration shared by strategy instances
type CrawlerConfig struct {
	Name              string
	DisplayName       string
	MaxPagesPerBucket int      // sitemap pages visited per bucket
	DenyHosts         []string // extra hosts never treated as downloads
}

// BaseCrawler provides common functionality for all strategies
type BaseCrawler struct {
	Config  CrawlerConfig
	fetcher PageFetcher
}

// Name implements Strategy
func (c *BaseCrawler) Name() string {
	return c.Config.Name
}

// DisplayName returns the human-readable name for this strategy
func (c *BaseCrawler) DisplayName() string {
	return c.Config.DisplayName
}
