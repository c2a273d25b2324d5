package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2/log"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/utils/extract"
)

// GenericStrategy scans a single page for links ending in .pdf
type GenericStrategy struct {
	BaseCrawler
}

// NewGenericStrategy creates the fallback strategy used for unregistered hosts
func NewGenericStrategy(f PageFetcher) *GenericStrategy {
	return &GenericStrategy{
		BaseCrawler: BaseCrawler{
			Config: CrawlerConfig{
				Name:        "generic",
				DisplayName: "Single page PDF links",
			},
			fetcher: f,
		},
	}
}

// Discover fetches root and emits one candidate per distinct .pdf anchor
func (c *GenericStrategy) Discover(ctx context.Context, root string) ([]model.CandidateLink, error) {
	page, err := c.fetcher.Fetch(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}

	base, err := pageBase(page.Doc, page.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve page base: %w", err)
	}

	pageTitle := strings.TrimSpace(page.Doc.Find("title").First().Text())
	seen := make(SeenURLSet)
	var links []model.CandidateLink

	page.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if isSkippableHref(href) {
			return
		}

		link := resolveLink(base, href)
		if link == "" || !hasPDFSuffix(link) || !seen.Add(link) {
			return
		}

		text := strings.Join(strings.Fields(s.Text()), " ")
		links = append(links, model.CandidateLink{
			URL:          link,
			Text:         text,
			ModuleNumber: extract.ModuleNumberFrom(text, link),
			PageURL:      page.FinalURL,
			PageTitle:    pageTitle,
		})
	})

	log.Infow("page scanned", "strategy", c.Name(), "url", root, "links", len(links))
	return links, nil
}
