package services

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/services/fetcher"
	"github.com/sahilchouksey/ktu-notes-scraper/services/storage"
	"github.com/sahilchouksey/ktu-notes-scraper/utils/pdfvalidation"
	"github.com/sahilchouksey/ktu-notes-scraper/utils/urlnorm"
)

// Downloader is the subset of the rate-limited fetcher the uploader uses
type Downloader interface {
	Download(ctx context.Context, url string) (*fetcher.Response, error)
	HeadSize(ctx context.Context, url string) (int64, bool)
}

// Uploader copies a document's file into the content store
type Uploader struct {
	downloader Downloader
	content    storage.ContentStore
	dedup      *Deduplicator
	dryRun     bool
}

// NewUploader creates an uploader
func NewUploader(downloader Downloader, content storage.ContentStore, dedup *Deduplicator) *Uploader {
	return &Uploader{
		downloader: downloader,
		content:    content,
		dedup:      dedup,
	}
}

// NewDryRunUploader creates an uploader that reports where each document
// would be stored without downloading or uploading anything
func NewDryRunUploader(content storage.ContentStore, dedup *Deduplicator) *Uploader {
	return &Uploader{
		content: content,
		dedup:   dedup,
		dryRun:  true,
	}
}

// Store makes sure the document's file is in the content store and returns
// its public URL plus the file size when known.
//
// The blob path is checked first, so a rerun over an item whose upload
// succeeded but whose insert did not skips the download entirely.
func (u *Uploader) Store(ctx context.Context, doc model.Document) (string, int64, error) {
	path := doc.StorageFilename()

	if u.dryRun {
		log.Infof("[DRY-RUN] Would download %s to %s", doc.File(), path)
		var size int64
		if s := doc.Size(); s != nil {
			size = *s
		}
		return u.content.PublicURL(path), size, nil
	}

	exists, err := u.dedup.BlobExists(ctx, path)
	if err != nil {
		return "", 0, err
	}
	if exists {
		log.Infow("blob already stored", "path", path)
		return u.content.PublicURL(path), u.probeSize(ctx, doc), nil
	}

	body, err := u.download(ctx, doc)
	if err != nil {
		return "", 0, err
	}

	storedURL, err := u.content.Upload(ctx, path, body, storage.ContentTypePDF)
	if err != nil {
		return "", 0, model.NewIngestError(model.StoreFailure, "upload", path, err)
	}
	if storedURL == "" {
		return "", 0, model.NewIngestError(model.StoreFailure, "upload", path, errors.New("store returned no url"))
	}

	return storedURL, int64(len(body)), nil
}

// download fetches and validates the document's bytes
func (u *Uploader) download(ctx context.Context, doc model.Document) ([]byte, error) {
	fileURL := doc.File()
	if urlnorm.IsIndirect(fileURL) {
		direct, err := urlnorm.Normalize(fileURL)
		if err != nil {
			return nil, model.NewIngestError(model.FetchFailure, "normalize", fileURL, err)
		}
		fileURL = direct
	}

	resp, err := u.downloader.Download(ctx, fileURL)
	if err != nil {
		return nil, err
	}

	if urlnorm.IsLargeFileInterstitial(resp.Body, resp.ContentType) {
		return nil, model.NewIngestError(model.FetchFailure, "download", fileURL,
			errors.New("host served a large-file warning page instead of the file"))
	}

	limits := pdfvalidation.NotesLimits
	if doc.Kind() == model.DocumentKindPaper {
		limits = pdfvalidation.PaperLimits
	}

	result := pdfvalidation.ValidatePDFBytes(resp.Body, limits)
	if !result.Valid {
		return nil, model.NewIngestError(model.ValidationFailure, "validate", fileURL, errors.New(result.Error))
	}

	return resp.Body, nil
}

// probeSize asks the origin for the file size without downloading it
func (u *Uploader) probeSize(ctx context.Context, doc model.Document) int64 {
	if size := doc.Size(); size != nil {
		return *size
	}
	if urlnorm.IsIndirect(doc.File()) {
		return 0
	}
	size, ok := u.downloader.HeadSize(ctx, doc.File())
	if !ok {
		return 0
	}
	return size
}
