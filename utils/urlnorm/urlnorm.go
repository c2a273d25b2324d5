// Package urlnorm rewrites indirect file-host links (cloud drive share and
// viewer pages) into direct download URLs.
package urlnorm

import (
	"bytes"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/sahilchouksey/ktu-notes-scraper/utils/pdfvalidation"
)

// ErrUnresolvable is returned when no file identifier can be extracted
var ErrUnresolvable = errors.New("unresolvable file link")

// DirectDownloadBase is the direct-fetch form that identifiers are rewritten into
const DirectDownloadBase = "https://drive.google.com/uc?export=download&id="

var indirectHosts = map[string]bool{
	"drive.google.com": true,
	"docs.google.com":  true,
}

var (
	fileViewRegex = regexp.MustCompile(`/file/d/([A-Za-z0-9_-]+)`)
	fileIDRegex   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// IsIndirect reports whether rawURL points at a known indirect file host
func IsIndirect(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return indirectHosts[strings.ToLower(u.Hostname())]
}

// IsFileView reports whether rawURL has the "file/d/<id>" viewer shape
func IsFileView(rawURL string) bool {
	return IsIndirect(rawURL) && fileViewRegex.MatchString(rawURL)
}

// Normalize turns a share or viewer link into a direct download URL.
//
//	https://drive.google.com/file/d/X1/view?usp=sharing -> https://drive.google.com/uc?export=download&id=X1
//	https://drive.google.com/open?id=X1                 -> https://drive.google.com/uc?export=download&id=X1
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ErrUnresolvable
	}

	if match := fileViewRegex.FindStringSubmatch(u.Path); match != nil {
		return DirectDownloadBase + match[1], nil
	}

	if id := u.Query().Get("id"); id != "" && fileIDRegex.MatchString(id) {
		return DirectDownloadBase + id, nil
	}

	return "", ErrUnresolvable
}

// interstitialMarkers fingerprint the warning page a drive host serves instead
// of the file when it is too large to virus-scan
var interstitialMarkers = [][]byte{
	[]byte("can't scan this file for viruses"),
	[]byte("can&#39;t scan this file for viruses"),
	[]byte("Google Drive - Virus scan warning"),
	[]byte(`id="download-form"`),
	[]byte("uc-download-link"),
}

// IsLargeFileInterstitial reports whether a response is the host's large-file
// warning page rather than the file. A body carrying the PDF signature is never
// an interstitial, whatever its content type says.
func IsLargeFileInterstitial(body []byte, contentType string) bool {
	if pdfvalidation.HasSignature(body) {
		return false
	}
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return false
	}
	for _, marker := range interstitialMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}
