// Package fetcher issues paced HTTP requests on behalf of crawler strategies
// and the uploader. Every request waits on a Gate before it is sent.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html/charset"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
)

const (
	DefaultUserAgent        = "KTU-Notes-Scraper/1.0 (Educational Purpose)"
	DefaultInterval         = 2 * time.Second
	DefaultPageTimeout      = 30 * time.Second
	DefaultHeadTimeout      = 10 * time.Second
	DefaultDownloadTimeout  = 60 * time.Second
	DefaultMaxDownloadBytes = 100 * 1024 * 1024
)

const acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Config holds fetcher settings
type Config struct {
	UserAgent        string
	Interval         time.Duration
	PageTimeout      time.Duration
	HeadTimeout      time.Duration
	DownloadTimeout  time.Duration
	MaxDownloadBytes int64
}

// DefaultConfig returns the defaults used for scraping runs
func DefaultConfig() Config {
	return Config{
		UserAgent:        DefaultUserAgent,
		Interval:         DefaultInterval,
		PageTimeout:      DefaultPageTimeout,
		HeadTimeout:      DefaultHeadTimeout,
		DownloadTimeout:  DefaultDownloadTimeout,
		MaxDownloadBytes: DefaultMaxDownloadBytes,
	}
}

// Response is a fetched body with its transport metadata
type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Page is a fetched HTML document
type Page struct {
	Response
	Doc *goquery.Document
}

// Fetcher performs rate-limited GET and HEAD requests
type Fetcher struct {
	client *http.Client
	gate   Gate
	config Config
}

// New creates a fetcher. A nil gate gets an IntervalGate built from config.Interval.
func New(config Config, gate Gate) *Fetcher {
	defaults := DefaultConfig()
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = defaults.PageTimeout
	}
	if config.HeadTimeout <= 0 {
		config.HeadTimeout = defaults.HeadTimeout
	}
	if config.DownloadTimeout <= 0 {
		config.DownloadTimeout = defaults.DownloadTimeout
	}
	if config.MaxDownloadBytes <= 0 {
		config.MaxDownloadBytes = defaults.MaxDownloadBytes
	}
	if gate == nil {
		gate = NewIntervalGate(config.Interval)
	}

	return &Fetcher{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone()),
		},
		gate:   gate,
		config: config,
	}
}

// Fetch downloads url and parses it as HTML
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	resp, err := f.get(ctx, url, f.config.PageTimeout, acceptHTML, f.config.MaxDownloadBytes)
	if err != nil {
		return nil, err
	}

	// Some mirrors still serve windows-1252 or declare the charset in a meta tag
	body, err := charset.NewReader(bytes.NewReader(resp.Body), resp.ContentType)
	if err != nil {
		return nil, model.NewIngestError(model.FetchFailure, "decode html", url, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, model.NewIngestError(model.FetchFailure, "parse html", url, err)
	}

	return &Page{Response: *resp, Doc: doc}, nil
}

// FetchRaw downloads url with the page timeout without parsing it
func (f *Fetcher) FetchRaw(ctx context.Context, url string) (*Response, error) {
	return f.get(ctx, url, f.config.PageTimeout, "*/*", f.config.MaxDownloadBytes)
}

// Download fetches a binary file with the download timeout and size cap
func (f *Fetcher) Download(ctx context.Context, url string) (*Response, error) {
	return f.get(ctx, url, f.config.DownloadTimeout, "application/pdf,*/*", f.config.MaxDownloadBytes)
}

// HeadSize returns the Content-Length reported by a HEAD request.
// Any failure yields unknown size rather than an error.
func (f *Fetcher) HeadSize(ctx context.Context, url string) (int64, bool) {
	if err := f.gate.Wait(ctx); err != nil {
		return 0, false
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.HeadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		log.Debugw("head request failed", "url", url, "error", err)
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || resp.ContentLength <= 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

func (f *Fetcher) get(ctx context.Context, url string, timeout time.Duration, accept string, maxBytes int64) (*Response, error) {
	if err := f.gate.Wait(ctx); err != nil {
		return nil, model.NewIngestError(model.FetchFailure, "wait", url, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NewIngestError(model.FetchFailure, "build request", url, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", accept)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, model.NewIngestError(model.FetchFailure, "get", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewIngestError(model.FetchFailure, "get", url,
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, model.NewIngestError(model.FetchFailure, "read body", url, err)
	}
	if int64(len(body)) > maxBytes {
		return nil, model.NewIngestError(model.FetchFailure, "read body", url,
			fmt.Errorf("response exceeds %d bytes", maxBytes))
	}

	log.Debugw("fetched", "url", url, "status", resp.StatusCode, "bytes", len(body), "took", time.Since(start))

	return &Response{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
