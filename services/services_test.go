package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/services/crawler"
	"github.com/sahilchouksey/ktu-notes-scraper/services/fetcher"
	"github.com/sahilchouksey/ktu-notes-scraper/utils/urlnorm"
)

// memoryRecords is an in-memory RecordStore
type memoryRecords struct {
	mu       sync.Mutex
	rows     map[model.Collection][]model.Row
	findErr  error
	findCall int
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{rows: make(map[model.Collection][]model.Row)}
}

func (m *memoryRecords) FindByField(ctx context.Context, collection model.Collection, field string, value interface{}) ([]model.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.findCall++
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []model.Row
	for _, row := range m.rows[collection] {
		if fmt.Sprint(row[field]) == fmt.Sprint(value) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memoryRecords) Insert(ctx context.Context, collection model.Collection, row model.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows[collection] = append(m.rows[collection], row)
	return nil
}

func (m *memoryRecords) HealthCheck(ctx context.Context) error { return nil }
func (m *memoryRecords) Close() error                          { return nil }

func (m *memoryRecords) count(collection model.Collection) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[collection])
}

// memoryContent is an in-memory ContentStore
type memoryContent struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemoryContent() *memoryContent {
	return &memoryContent{blobs: make(map[string][]byte)}
}

func (m *memoryContent) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[path]
	return ok, nil
}

func (m *memoryContent) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[path] = data
	return m.PublicURL(path), nil
}

func (m *memoryContent) PublicURL(path string) string {
	return "https://cdn.test/" + path
}

// failingDownloader fails the test if the uploader downloads anything
type failingDownloader struct {
	t *testing.T
}

func (d failingDownloader) Download(ctx context.Context, url string) (*fetcher.Response, error) {
	d.t.Errorf("unexpected download of %s", url)
	return nil, errors.New("unexpected download")
}

func (d failingDownloader) HeadSize(ctx context.Context, url string) (int64, bool) {
	return 1234, true
}

// recordingDownloader serves a fixed response and remembers every URL asked for
type recordingDownloader struct {
	resp fetcher.Response
	urls []string
}

func (d *recordingDownloader) Download(ctx context.Context, url string) (*fetcher.Response, error) {
	d.urls = append(d.urls, url)
	resp := d.resp
	resp.URL = url
	return &resp, nil
}

func (d *recordingDownloader) HeadSize(ctx context.Context, url string) (int64, bool) {
	return 0, false
}

const samplePDF = "%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n"

func servePDF(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	io.WriteString(w, samplePDF)
}

func newNotesSite(t *testing.T, noteHandler http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/notes/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notes/" {
			noteHandler(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>KTU Notes</title></head><body>
			<a href="a.pdf">CST201 Module 2 Notes</a>
			<a href="/files/b.pdf">CST202 2022 Question Paper</a>
		</body></html>`)
	})
	mux.HandleFunc("/files/b.pdf", servePDF)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testPipeline struct {
	*IngestionPipeline
	records *memoryRecords
	content *memoryContent
}

func newTestPipeline() testPipeline {
	f := fetcher.New(fetcher.DefaultConfig(), fetcher.NewIntervalGate(0))
	records := newMemoryRecords()
	content := newMemoryContent()

	registry := crawler.NewRegistry(crawler.NewGenericStrategy(f))
	dedup := NewDeduplicator(records, content)
	uploader := NewUploader(f, content, dedup)

	return testPipeline{
		IngestionPipeline: NewIngestionPipeline(registry, records, dedup, uploader, nil),
		records:           records,
		content:           content,
	}
}

func TestPipelineIngestsAndDeduplicates(t *testing.T) {
	srv := newNotesSite(t, servePDF)
	p := newTestPipeline()
	sources := model.SourcesFromURLs(srv.URL + "/notes/")

	first := p.Run(context.Background(), sources)
	if first.Found != 2 || first.Added != 2 {
		t.Fatalf("first run found=%d added=%d, want 2/2 (%+v)", first.Found, first.Added, first.Sources)
	}
	if first.Status != model.RunStatusCompleted {
		t.Errorf("Status = %s", first.Status)
	}

	if got := p.records.count(model.CollectionNotes); got != 1 {
		t.Errorf("notes = %d, want 1", got)
	}
	if got := p.records.count(model.CollectionPapers); got != 1 {
		t.Fatalf("papers = %d, want 1", got)
	}
	if got := p.records.count(model.CollectionSubjects); got != 2 {
		t.Errorf("subjects = %d, want 2", got)
	}
	if got := len(p.content.blobs); got != 2 {
		t.Errorf("blobs = %d, want 2", got)
	}

	note := p.records.rows[model.CollectionNotes][0]
	if note["subject_id"] != "cst201" || note["module_number"] != 2 || note["is_published"] != false {
		t.Errorf("unexpected note row: %v", note)
	}
	paper := p.records.rows[model.CollectionPapers][0]
	if paper["year"] != 2022 || paper["exam_type"] != "regular" || paper["subject_id"] != "cst202" {
		t.Errorf("unexpected paper row: %v", paper)
	}

	second := p.Run(context.Background(), sources)
	if second.Found != 2 || second.Added != 0 {
		t.Errorf("second run found=%d added=%d, want 2/0", second.Found, second.Added)
	}
	if second.Counters.Duplicates != 2 {
		t.Errorf("Duplicates = %d, want 2", second.Counters.Duplicates)
	}
	if got := p.records.count(model.CollectionNotes) + p.records.count(model.CollectionPapers); got != 2 {
		t.Errorf("records after rerun = %d, want 2", got)
	}

	// One row per source plus one aggregate, per run
	runs := p.records.rows[model.CollectionRuns]
	if len(runs) != 4 {
		t.Fatalf("run rows = %d, want 4", len(runs))
	}
	if runs[1]["source"] != model.AggregateSource || runs[1]["items_added"] != 2 {
		t.Errorf("unexpected aggregate row: %v", runs[1])
	}
	if runs[2]["source"] != srv.URL+"/notes/" || runs[2]["status"] != "completed" {
		t.Errorf("unexpected source row: %v", runs[2])
	}
}

func TestPipelineRejectsNonPDF(t *testing.T) {
	srv := newNotesSite(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>File moved</body></html>")
	})
	p := newTestPipeline()

	summary := p.Run(context.Background(), model.SourcesFromURLs(srv.URL+"/notes/"))
	if summary.Added != 1 {
		t.Errorf("Added = %d, want 1", summary.Added)
	}
	if summary.Counters.ValidationFails != 1 {
		t.Errorf("ValidationFails = %d, want 1", summary.Counters.ValidationFails)
	}
	if got := p.records.count(model.CollectionNotes); got != 0 {
		t.Errorf("notes = %d, want 0", got)
	}
	if got := len(p.content.blobs); got != 1 {
		t.Errorf("blobs = %d, want 1", got)
	}
}

func TestPipelineRejectsBodyLabelledPDFWithoutSignature(t *testing.T) {
	srv := newNotesSite(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, `{"error":"quota exceeded"}`)
	})
	p := newTestPipeline()

	summary := p.Run(context.Background(), model.SourcesFromURLs(srv.URL+"/notes/"))
	if summary.Added != 1 {
		t.Errorf("Added = %d, want 1", summary.Added)
	}
	if summary.Counters.ValidationFails != 1 {
		t.Errorf("ValidationFails = %d, want 1", summary.Counters.ValidationFails)
	}
	if got := p.records.count(model.CollectionNotes); got != 0 {
		t.Errorf("notes = %d, want 0", got)
	}
	if got := len(p.content.blobs); got != 1 {
		t.Errorf("blobs = %d, want 1", got)
	}
	for path, data := range p.content.blobs {
		if string(data) != samplePDF {
			t.Errorf("blob %s = %q, want the paper pdf", path, data)
		}
	}
}

func TestPipelineDryRunSkipsDownloads(t *testing.T) {
	var downloads int32
	srv := newNotesSite(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&downloads, 1)
		servePDF(w, r)
	})

	f := fetcher.New(fetcher.DefaultConfig(), fetcher.NewIntervalGate(0))
	records := newMemoryRecords()
	content := newMemoryContent()
	dedup := NewDeduplicator(records, content)
	p := NewIngestionPipeline(crawler.NewRegistry(crawler.NewGenericStrategy(f)), records, dedup, NewDryRunUploader(content, dedup), nil)

	summary := p.Run(context.Background(), model.SourcesFromURLs(srv.URL+"/notes/"))
	if summary.Found != 2 || summary.Added != 2 {
		t.Fatalf("found=%d added=%d, want 2/2", summary.Found, summary.Added)
	}
	if got := atomic.LoadInt32(&downloads); got != 0 {
		t.Errorf("downloads = %d, want 0", got)
	}
	if got := len(content.blobs); got != 0 {
		t.Errorf("blobs = %d, want 0", got)
	}

	note := records.rows[model.CollectionNotes][0]
	if url, _ := note["file_url"].(string); !strings.HasPrefix(url, "https://cdn.test/notes/") {
		t.Errorf("file_url = %v, want a content store url", note["file_url"])
	}
}

func TestPipelineSourceFailureDoesNotStopOthers(t *testing.T) {
	srv := newNotesSite(t, servePDF)
	p := newTestPipeline()

	sources := []model.Source{
		{URL: srv.URL + "/missing/"},
		{URL: srv.URL + "/notes/", Strategy: "no-such-strategy"},
		{URL: srv.URL + "/notes/"},
	}
	summary := p.Run(context.Background(), sources)

	if len(summary.Sources) != 3 {
		t.Fatalf("sources = %d, want 3", len(summary.Sources))
	}
	if summary.Sources[0].Status != model.RunStatusFailed || summary.Sources[0].Found != 0 {
		t.Errorf("unexpected first result: %+v", summary.Sources[0])
	}
	if summary.Sources[1].Status != model.RunStatusFailed {
		t.Errorf("unknown strategy should fail the source: %+v", summary.Sources[1])
	}
	if summary.Sources[2].Added != 2 {
		t.Errorf("third source added %d, want 2", summary.Sources[2].Added)
	}
	if summary.Status != model.RunStatusCompleted {
		t.Errorf("aggregate status = %s", summary.Status)
	}

	runs := p.records.rows[model.CollectionRuns]
	if len(runs) != 4 {
		t.Fatalf("run rows = %d, want 4", len(runs))
	}
	if runs[0]["status"] != "failed" || runs[0]["items_found"] != 0 {
		t.Errorf("unexpected failed source row: %v", runs[0])
	}
}

func TestPipelineEmptySources(t *testing.T) {
	p := newTestPipeline()

	summary := p.Run(context.Background(), nil)
	if summary.Found != 0 || summary.Added != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if got := p.records.count(model.CollectionRuns); got != 0 {
		t.Errorf("run rows = %d, want 0", got)
	}
}

func TestPipelineCancelledRunIsLogged(t *testing.T) {
	srv := newNotesSite(t, servePDF)
	p := newTestPipeline()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := p.Run(ctx, model.SourcesFromURLs(srv.URL+"/notes/"))
	if summary.Status != model.RunStatusFailed {
		t.Errorf("Status = %s, want failed", summary.Status)
	}

	runs := p.records.rows[model.CollectionRuns]
	if len(runs) != 1 {
		t.Fatalf("run rows = %d, want 1", len(runs))
	}
	if runs[0]["source"] != model.AggregateSource || runs[0]["status"] != "failed" {
		t.Errorf("unexpected aggregate row: %v", runs[0])
	}
}

func TestBuildDocument(t *testing.T) {
	src := model.Source{URL: "https://www.ktunotes.in/notes/"}

	tests := []struct {
		name      string
		candidate model.CandidateLink
		wantKind  model.DocumentKind
		wantErr   model.ErrorKind
		check     func(t *testing.T, doc model.Document)
	}{
		{
			name:      "note from link text",
			candidate: model.CandidateLink{URL: "https://www.ktunotes.in/f/a.pdf", Text: "CST201 Module 3 Notes", ModuleNumber: 3},
			wantKind:  model.DocumentKindNote,
			check: func(t *testing.T, doc model.Document) {
				note := doc.(model.Note)
				if note.ModuleNumber != 3 || note.SourceName != "www.ktunotes.in" {
					t.Errorf("unexpected note: %+v", note)
				}
			},
		},
		{
			name:      "code from url path",
			candidate: model.CandidateLink{URL: "https://ktu2024.web.app/mat101/mod1.pdf", Text: "Download"},
			wantKind:  model.DocumentKindNote,
			check: func(t *testing.T, doc model.Document) {
				if doc.Subject() != "MAT101" {
					t.Errorf("Subject = %q", doc.Subject())
				}
			},
		},
		{
			name:      "paper with month and supplementary",
			candidate: model.CandidateLink{URL: "https://www.ktunotes.in/f/q.pdf", Text: "MAT101 Supplementary Exam December 2019"},
			wantKind:  model.DocumentKindPaper,
			check: func(t *testing.T, doc model.Document) {
				paper := doc.(model.Paper)
				if paper.Year != 2019 || paper.ExamType != model.ExamTypeSupplementary || paper.Month != "December" {
					t.Errorf("unexpected paper: %+v", paper)
				}
			},
		},
		{
			name:      "year alone stays a note",
			candidate: model.CandidateLink{URL: "https://www.ktunotes.in/f/n.pdf", Text: "CST201 2019 scheme notes"},
			wantKind:  model.DocumentKindNote,
		},
		{
			name:      "paper hint without year",
			candidate: model.CandidateLink{URL: "https://www.ktunotes.in/f/p.pdf", Text: "CST202 question paper", Kind: model.DocumentKindPaper},
			wantErr:   model.ExtractionMiss,
		},
		{
			name:      "paper hint takes year from page",
			candidate: model.CandidateLink{URL: "https://www.ktunotes.in/f/p.pdf", Text: "Download", SubjectCode: "CST202", Kind: model.DocumentKindPaper, PageTitle: "CST202 May 2023 Question Paper"},
			wantKind:  model.DocumentKindPaper,
			check: func(t *testing.T, doc model.Document) {
				if doc.(model.Paper).Year != 2023 {
					t.Errorf("Year = %d", doc.(model.Paper).Year)
				}
			},
		},
		{
			name:      "no subject code",
			candidate: model.CandidateLink{URL: "https://www.ktunotes.in/f/x.pdf", Text: "Syllabus"},
			wantErr:   model.ExtractionMiss,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := BuildDocument(src, tt.candidate)
			if tt.wantErr != "" {
				if !model.IsKind(err, tt.wantErr) {
					t.Fatalf("BuildDocument() error = %v, want kind %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildDocument() error = %v", err)
			}
			if doc.Kind() != tt.wantKind {
				t.Fatalf("Kind() = %s, want %s", doc.Kind(), tt.wantKind)
			}
			if tt.check != nil {
				tt.check(t, doc)
			}
		})
	}
}

func TestSubjectRegistryCachesAndSkipsExisting(t *testing.T) {
	records := newMemoryRecords()
	registry := NewSubjectRegistry(records)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := registry.Ensure(ctx, "CST201"); err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
	}
	if got := records.count(model.CollectionSubjects); got != 1 {
		t.Errorf("subjects = %d, want 1", got)
	}
	if records.findCall != 1 {
		t.Errorf("lookups = %d, want 1", records.findCall)
	}
	if !registry.Known("cst201") {
		t.Error("Known() = false after Ensure")
	}

	// A fresh registry finds the existing row and does not insert again
	if err := NewSubjectRegistry(records).Ensure(ctx, "CST201"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if got := records.count(model.CollectionSubjects); got != 1 {
		t.Errorf("subjects = %d, want 1", got)
	}

	row := records.rows[model.CollectionSubjects][0]
	if row["id"] != "cst201" || row["name"] != "CST 201" || row["semester"] != 2 {
		t.Errorf("unexpected subject row: %v", row)
	}
}

func TestSubjectRegistryDoesNotCacheFailures(t *testing.T) {
	records := newMemoryRecords()
	records.findErr = errors.New("connection refused")
	registry := NewSubjectRegistry(records)

	err := registry.Ensure(context.Background(), "CST201")
	if !model.IsKind(err, model.StoreFailure) {
		t.Fatalf("Ensure() error = %v, want store failure", err)
	}
	if registry.Known("CST201") {
		t.Error("failed subject was cached")
	}

	records.findErr = nil
	if err := registry.Ensure(context.Background(), "CST201"); err != nil {
		t.Fatalf("Ensure() after recovery error = %v", err)
	}
	if got := records.count(model.CollectionSubjects); got != 1 {
		t.Errorf("subjects = %d, want 1", got)
	}
}

func TestUploaderReusesExistingBlob(t *testing.T) {
	records := newMemoryRecords()
	content := newMemoryContent()
	dedup := NewDeduplicator(records, content)
	uploader := NewUploader(failingDownloader{t: t}, content, dedup)

	note, err := model.NewNote(model.DocumentBase{
		SubjectCode: "CST201",
		FileURL:     "https://www.ktunotes.in/f/a.pdf",
		SourceURL:   "https://www.ktunotes.in/f/a.pdf",
	}, "Module 1", "", 1)
	if err != nil {
		t.Fatalf("NewNote() error = %v", err)
	}
	content.blobs[note.StorageFilename()] = []byte(samplePDF)

	storedURL, size, err := uploader.Store(context.Background(), note)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if storedURL != content.PublicURL(note.StorageFilename()) {
		t.Errorf("storedURL = %q", storedURL)
	}
	if size != 1234 {
		t.Errorf("size = %d, want head size 1234", size)
	}
}

func TestUploaderRejectsDriveWarningPage(t *testing.T) {
	records := newMemoryRecords()
	content := newMemoryContent()
	downloader := &recordingDownloader{resp: fetcher.Response{
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(`<html><head><title>Google Drive - Virus scan warning</title></head><body><form id="download-form" action="/uc"></form></body></html>`),
	}}
	uploader := NewUploader(downloader, content, NewDeduplicator(records, content))

	note, err := model.NewNote(model.DocumentBase{
		SubjectCode: "CST201",
		FileURL:     "https://drive.google.com/file/d/X1/view",
		SourceURL:   "https://drive.google.com/file/d/X1/view",
	}, "Module 1", "", 1)
	if err != nil {
		t.Fatalf("NewNote() error = %v", err)
	}

	_, _, err = uploader.Store(context.Background(), note)
	if !model.IsKind(err, model.FetchFailure) {
		t.Fatalf("Store() error = %v, want fetch failure", err)
	}
	if len(downloader.urls) != 1 || downloader.urls[0] != urlnorm.DirectDownloadBase+"X1" {
		t.Errorf("downloaded %v, want %s", downloader.urls, urlnorm.DirectDownloadBase+"X1")
	}
	if got := len(content.blobs); got != 0 {
		t.Errorf("blobs = %d, want 0", got)
	}
}

func TestDryRunUploaderReportsURLWithoutDownloading(t *testing.T) {
	content := newMemoryContent()
	uploader := NewDryRunUploader(content, NewDeduplicator(newMemoryRecords(), content))

	size := int64(2048)
	note, err := model.NewNote(model.DocumentBase{
		SubjectCode:   "CST201",
		FileURL:       "https://www.ktunotes.in/f/a.pdf",
		SourceURL:     "https://www.ktunotes.in/f/a.pdf",
		FileSizeBytes: &size,
	}, "Module 1", "", 1)
	if err != nil {
		t.Fatalf("NewNote() error = %v", err)
	}

	storedURL, gotSize, err := uploader.Store(context.Background(), note)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if storedURL != content.PublicURL(note.StorageFilename()) || gotSize != size {
		t.Errorf("Store() = (%q, %d)", storedURL, gotSize)
	}
	if got := len(content.blobs); got != 0 {
		t.Errorf("blobs = %d, want 0", got)
	}
}

func TestDeduplicatorSeparatesKinds(t *testing.T) {
	records := newMemoryRecords()
	records.rows[model.CollectionNotes] = []model.Row{{"source_url": "https://x.test/a.pdf"}}
	dedup := NewDeduplicator(records, newMemoryContent())
	ctx := context.Background()

	isNew, err := dedup.IsNewRecord(ctx, "https://x.test/a.pdf", model.DocumentKindNote)
	if err != nil || isNew {
		t.Errorf("note IsNewRecord() = %v, %v; want false", isNew, err)
	}
	isNew, err = dedup.IsNewRecord(ctx, "https://x.test/a.pdf", model.DocumentKindPaper)
	if err != nil || !isNew {
		t.Errorf("paper IsNewRecord() = %v, %v; want true", isNew, err)
	}
}
