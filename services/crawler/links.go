package crawler

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const pdfSuffix = ".pdf"

// defaultDenyHosts are navigation and social domains whose links are never
// documents even when they look like one. Dead mirrors come from DENY_HOSTS.
var defaultDenyHosts = []string{
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"whatsapp.com",
	"wa.me",
	"telegram.org",
	"telegram.me",
	"t.me",
	"linkedin.com",
	"youtube.com",
	"youtu.be",
	"pinterest.com",
	"play.google.com",
	"blogger.com",
}

// SeenURLSet remembers which links were already accepted during one page scan
type SeenURLSet map[string]struct{}

// Add records u and reports whether it was new
func (s SeenURLSet) Add(u string) bool {
	if _, ok := s[u]; ok {
		return false
	}
	s[u] = struct{}{}
	return true
}

// pageBase returns the URL relative links on the page resolve against:
// the document's <base href> when present, otherwise the final page URL
func pageBase(doc *goquery.Document, pageURL string) (*url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	return base, nil
}

// resolveLink returns href as an absolute http(s) URL, or "" when it cannot be one
func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

// hasPDFSuffix reports whether the URL path ends in .pdf, ignoring case and query
func hasPDFSuffix(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(path.Ext(u.Path), pdfSuffix)
}

// isSkippableHref filters empty, fragment and site-root targets
func isSkippableHref(href string) bool {
	href = strings.TrimSpace(href)
	return href == "" || href == "/" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(strings.ToLower(href), "javascript:") ||
		strings.HasPrefix(strings.ToLower(href), "mailto:")
}

type hostMatcher []string

func newHostMatcher(extra []string) hostMatcher {
	hosts := make(hostMatcher, 0, len(defaultDenyHosts)+len(extra))
	hosts = append(hosts, defaultDenyHosts...)
	for _, h := range extra {
		hosts = append(hosts, strings.ToLower(strings.TrimSpace(h)))
	}
	return hosts
}

// denied reports whether the URL's host is, or is a subdomain of, a listed host
func (m hostMatcher) denied(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range m {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// lastPathSegment returns a readable file name for links without text
func lastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	seg := path.Base(u.Path)
	if seg == "." || seg == "/" {
		return ""
	}
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	return seg
}

// LinkTitle returns the link text, falling back to the URL's last path segment
func LinkTitle(text, rawURL string) string {
	if t := strings.Join(strings.Fields(text), " "); t != "" {
		return t
	}
	return lastPathSegment(rawURL)
}
