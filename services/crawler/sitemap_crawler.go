package crawler

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/gofiber/fiber/v2/log"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/services/fetcher"
	"github.com/sahilchouksey/ktu-notes-scraper/utils/extract"
	"github.com/sahilchouksey/ktu-notes-scraper/utils/urlnorm"
)

// DefaultMaxPagesPerBucket bounds the pages visited per bucket in one run
const DefaultMaxPagesPerBucket = 25

const sitemapPath = "/sitemap.xml"

// paperPathMarkers classify a sitemap location as a question paper page.
// They are checked before the notes marker.
var paperPathMarkers = []string{"question-paper", "question_paper", "previous-year", "pyq", "qp"}

const notePathMarker = "note"

type sitemapURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// SitemapStrategy enumerates a source's XML sitemap, buckets pages into notes
// and question papers by URL shape, then scans each page for download links
type SitemapStrategy struct {
	BaseCrawler
	deny hostMatcher
}

// NewSitemapStrategy creates a sitemap-driven strategy
func NewSitemapStrategy(f PageFetcher, config CrawlerConfig) *SitemapStrategy {
	if config.Name == "" {
		config.Name = "sitemap"
	}
	if config.DisplayName == "" {
		config.DisplayName = "Sitemap notes and question papers"
	}
	if config.MaxPagesPerBucket <= 0 {
		config.MaxPagesPerBucket = DefaultMaxPagesPerBucket
	}

	return &SitemapStrategy{
		BaseCrawler: BaseCrawler{Config: config, fetcher: f},
		deny:        newHostMatcher(config.DenyHosts),
	}
}

// Discover implements Strategy
func (c *SitemapStrategy) Discover(ctx context.Context, root string) ([]model.CandidateLink, error) {
	rootURL, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("invalid source root %q: %w", root, err)
	}
	sitemapURL := rootURL.ResolveReference(&url.URL{Path: sitemapPath}).String()

	locations, err := c.fetchLocations(ctx, sitemapURL, true)
	if err != nil {
		return nil, err
	}

	notes, papers := PartitionLocations(locations, c.Config.MaxPagesPerBucket)
	log.Infow("sitemap partitioned", "source", root, "locations", len(locations),
		"notes_pages", len(notes), "paper_pages", len(papers))

	var links []model.CandidateLink
	for _, bucket := range []struct {
		kind  model.DocumentKind
		pages []string
	}{
		{model.DocumentKindNote, notes},
		{model.DocumentKindPaper, papers},
	} {
		for _, pageURL := range bucket.pages {
			if err := ctx.Err(); err != nil {
				return links, err
			}

			found, err := c.scanPage(ctx, pageURL, bucket.kind)
			if err != nil {
				log.Warnw("sitemap page skipped", "url", pageURL, "error", err)
				continue
			}
			links = append(links, found...)
		}
	}

	return links, nil
}

// fetchLocations returns every <loc> in the sitemap, following one level of
// sitemap index
func (c *SitemapStrategy) fetchLocations(ctx context.Context, sitemapURL string, followIndex bool) ([]string, error) {
	resp, err := c.fetcher.FetchRaw(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}

	var index sitemapIndex
	if followIndex && xml.Unmarshal(resp.Body, &index) == nil && len(index.Sitemaps) > 0 {
		var locations []string
		for _, child := range index.Sitemaps {
			childLocs, err := c.fetchLocations(ctx, strings.TrimSpace(child.Loc), false)
			if err != nil {
				log.Warnw("child sitemap skipped", "url", child.Loc, "error", err)
				continue
			}
			locations = append(locations, childLocs...)
		}
		return locations, nil
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(resp.Body, &set); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap: %w", err)
	}

	locations := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			locations = append(locations, loc)
		}
	}
	return locations, nil
}

// PartitionLocations splits sitemap locations into notes and paper pages by
// path substring, keeping at most limit pages in each bucket
func PartitionLocations(locations []string, limit int) (notes, papers []string) {
	for _, loc := range locations {
		u, err := url.Parse(loc)
		if err != nil {
			continue
		}
		p := strings.ToLower(u.Path)

		switch {
		case containsAny(p, paperPathMarkers):
			if len(papers) < limit {
				papers = append(papers, loc)
			}
		case strings.Contains(p, notePathMarker):
			if len(notes) < limit {
				notes = append(notes, loc)
			}
		}
	}
	return notes, papers
}

func (c *SitemapStrategy) scanPage(ctx context.Context, pageURL string, kind model.DocumentKind) ([]model.CandidateLink, error) {
	code, ok := extract.SubjectCodeFromURL(pageURL)
	if !ok {
		log.Debugw("no subject code in page url", "url", pageURL)
		return nil, nil
	}

	page, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	title, description := pageSummary(page)

	base, err := pageBase(page.Doc, page.FinalURL)
	if err != nil {
		return nil, err
	}

	seen := make(SeenURLSet)
	var links []model.CandidateLink

	page.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if isSkippableHref(href) {
			return
		}

		link := resolveLink(base, href)
		if link == "" || c.deny.denied(link) {
			return
		}
		if !hasPDFSuffix(link) && !urlnorm.IsFileView(link) {
			return
		}
		if !seen.Add(link) {
			return
		}

		text := strings.Join(strings.Fields(s.Text()), " ")
		links = append(links, model.CandidateLink{
			URL:          link,
			Text:         text,
			ModuleNumber: extract.ModuleNumberFrom(text, link),
			PageURL:      pageURL,
			PageTitle:    title,
			Description:  description,
			SubjectCode:  code,
			Kind:         kind,
		})
	})

	return links, nil
}

// pageSummary extracts a title and short description. Readability is tried
// first; <title> and the first <h1> are the fallbacks.
func pageSummary(page *fetcher.Page) (title, description string) {
	if pageURL, err := url.Parse(page.FinalURL); err == nil {
		parser := readability.NewParser()
		article, err := parser.Parse(bytes.NewReader(page.Body), pageURL)
		if err == nil {
			title = strings.TrimSpace(article.Title)
			description = strings.TrimSpace(article.Excerpt)
		}
	}

	if title == "" {
		title = strings.TrimSpace(page.Doc.Find("title").First().Text())
	}
	if title == "" {
		title = strings.TrimSpace(page.Doc.Find("h1").First().Text())
	}
	return strings.Join(strings.Fields(title), " "), description
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
