package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sahilchouksey/ktu-notes-scraper/database"
	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/services/crawler"
	"github.com/sahilchouksey/ktu-notes-scraper/services/notify"
	"github.com/sahilchouksey/ktu-notes-scraper/utils/extract"
)

// runLogTimeout bounds the final run-log inserts, which still happen after
// the run context was cancelled
const runLogTimeout = 30 * time.Second

// errDuplicate marks a candidate that already has a record
var errDuplicate = errors.New("already ingested")

// Source states, logged as each source moves through the pipeline
const (
	statePending    = "pending"
	stateFetching   = "fetching"
	stateExtracting = "extracting"
	statePersisting = "persisting"
	stateDone       = "done"
	stateFailed     = "failed"
)

// SourceResult is the outcome of one source
type SourceResult struct {
	Source   string            `json:"source"`
	Strategy string            `json:"strategy"`
	Status   model.RunStatus   `json:"status"`
	Found    int               `json:"found"`
	Added    int               `json:"added"`
	Error    string            `json:"error,omitempty"`
	Counters model.RunCounters `json:"counters"`
}

// RunSummary totals one pipeline invocation
type RunSummary struct {
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Sources   []SourceResult    `json:"sources"`
	Found     int               `json:"found"`
	Added     int               `json:"added"`
	Counters  model.RunCounters `json:"counters"`
	Status    model.RunStatus   `json:"status"`
}

// IngestionPipeline drives discovered candidates through dedup, subject
// creation, upload and record insertion
type IngestionPipeline struct {
	registry *crawler.Registry
	records  database.RecordStore
	dedup    *Deduplicator
	uploader *Uploader
	notifier notify.Notifier
}

// NewIngestionPipeline wires a pipeline. A nil notifier publishes nothing.
func NewIngestionPipeline(registry *crawler.Registry, records database.RecordStore, dedup *Deduplicator, uploader *Uploader, notifier notify.Notifier) *IngestionPipeline {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &IngestionPipeline{
		registry: registry,
		records:  records,
		dedup:    dedup,
		uploader: uploader,
		notifier: notifier,
	}
}

// Run ingests every source in order. A failing source is logged and recorded
// and never stops its siblings. After all sources one aggregate run-log row
// is written.
func (p *IngestionPipeline) Run(ctx context.Context, sources []model.Source) RunSummary {
	summary := RunSummary{
		StartedAt: time.Now().UTC(),
		Status:    model.RunStatusCompleted,
	}

	if len(sources) == 0 {
		err := model.NewIngestError(model.ConfigurationGap, "run", "", errors.New("no sources configured"))
		log.Warnw("nothing to scrape", "error", err)
		return summary
	}

	// Subject cache lives for this run only
	subjects := NewSubjectRegistry(p.records)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			log.Warnw("run cancelled before source", "source", src.URL, "error", err)
			summary.Status = model.RunStatusFailed
			break
		}

		result := p.runSource(ctx, src, subjects)
		summary.Sources = append(summary.Sources, result)
		summary.Found += result.Found
		summary.Added += result.Added
		addCounters(&summary.Counters, result.Counters)

		run := model.NewScrapeRun(result.Source, result.Status, result.Found, result.Added,
			summary.StartedAt, errorFromString(result.Error), &result.Counters)
		p.writeRun(ctx, run)
	}

	var runErr error
	if err := ctx.Err(); err != nil {
		summary.Status = model.RunStatusFailed
		runErr = err
	}

	aggregate := model.NewScrapeRun(model.AggregateSource, summary.Status, summary.Found, summary.Added,
		summary.StartedAt, runErr, &summary.Counters)
	p.writeRun(ctx, aggregate)

	summary.Duration = time.Since(summary.StartedAt)
	p.publish(ctx, notify.Event{
		Type:   notify.EventRunFinished,
		Source: model.AggregateSource,
		Found:  summary.Found,
		Added:  summary.Added,
		Status: string(summary.Status),
	})

	log.Infow("scraping complete", "found", summary.Found, "added", summary.Added,
		"duplicates", summary.Counters.Duplicates, "took", summary.Duration.Round(time.Millisecond))
	return summary
}

func (p *IngestionPipeline) runSource(ctx context.Context, src model.Source, subjects *SubjectRegistry) SourceResult {
	result := SourceResult{Source: src.URL, Status: model.RunStatusCompleted}
	logState(src, statePending)

	strategy, err := p.strategyFor(src)
	if err != nil {
		return failSource(src, result, err)
	}
	result.Strategy = strategy.Name()

	logState(src, stateFetching)
	candidates, err := strategy.Discover(ctx, src.URL)
	if err != nil {
		return failSource(src, result, err)
	}

	logState(src, stateExtracting)
	result.Found = len(candidates)

	logState(src, statePersisting)
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			result.Status = model.RunStatusFailed
			result.Error = err.Error()
			logState(src, stateFailed)
			return result
		}

		err := p.processCandidate(ctx, src, candidate, subjects)
		recordOutcome(&result, candidate, err)
	}

	logState(src, stateDone)
	log.Infow("source finished", "source", src.URL, "strategy", result.Strategy,
		"found", result.Found, "added", result.Added)
	return result
}

func (p *IngestionPipeline) strategyFor(src model.Source) (crawler.Strategy, error) {
	if src.Strategy == "" {
		return p.registry.For(src.URL), nil
	}
	strategy, err := p.registry.ByName(src.Strategy)
	if err != nil {
		return nil, model.NewIngestError(model.ConfigurationGap, "select strategy", src.URL, err)
	}
	return strategy, nil
}

// processCandidate returns nil only when a new record was inserted
func (p *IngestionPipeline) processCandidate(ctx context.Context, src model.Source, candidate model.CandidateLink, subjects *SubjectRegistry) error {
	doc, err := BuildDocument(src, candidate)
	if err != nil {
		return err
	}

	isNew, err := p.dedup.IsNewRecord(ctx, doc.Source(), doc.Kind())
	if err != nil {
		return err
	}
	if !isNew {
		return errDuplicate
	}

	if err := subjects.Ensure(ctx, doc.Subject()); err != nil {
		return err
	}

	storedURL, size, err := p.uploader.Store(ctx, doc)
	if err != nil {
		return err
	}
	if doc.Size() == nil && size > 0 {
		doc = doc.WithFileSize(size)
	}

	collection := doc.Kind().Collection()
	if err := p.records.Insert(ctx, collection, doc.Row(model.SubjectID(doc.Subject()), storedURL)); err != nil {
		return model.NewIngestError(model.StoreFailure, "insert", doc.Source(), err)
	}

	log.Infow("saved", "kind", doc.Kind(), "document", doc.Label(), "url", storedURL)
	p.publish(ctx, notify.Event{
		Type:        notify.EventDocumentAdded,
		Source:      src.URL,
		Kind:        string(doc.Kind()),
		SubjectCode: doc.Subject(),
		SourceURL:   doc.Source(),
		StoredURL:   storedURL,
	})
	return nil
}

// BuildDocument classifies a candidate as a note or a paper and validates it.
// A candidate is a paper when its strategy says so, or when its text carries
// both a year and question-paper wording.
func BuildDocument(src model.Source, c model.CandidateLink) (model.Document, error) {
	linkPath := urlPath(c.URL)

	code, ok := c.SubjectCode, c.SubjectCode != ""
	if !ok {
		code, ok = extract.SubjectCode(c.Text)
	}
	if !ok {
		code, ok = extract.SubjectCode(linkPath)
	}
	if !ok {
		code, ok = extract.SubjectCode(c.PageTitle)
	}
	if !ok {
		return nil, model.NewIngestError(model.ExtractionMiss, "subject code", c.URL, errors.New("no subject code in link text, url or page title"))
	}

	base := model.DocumentBase{
		SubjectCode: code,
		FileURL:     c.URL,
		SourceURL:   c.URL,
		SourceName:  src.Host(),
	}

	year, hasYear := extract.Year(c.Text + " " + linkPath)
	isPaper := c.Kind == model.DocumentKindPaper || (hasYear && extract.IsPaperText(c.Text))

	if isPaper {
		descriptor := c.Text + " " + linkPath
		if c.Kind == model.DocumentKindPaper {
			descriptor += " " + c.PageTitle
			if !hasYear {
				year, _ = extract.Year(c.PageTitle + " " + urlPath(c.PageURL))
			}
		}
		month, _ := extract.Month(descriptor)
		return model.NewPaper(base, year, extract.ExamType(descriptor), month)
	}

	module := c.ModuleNumber
	if module < 1 {
		module = extract.ModuleNumberFrom(c.Text, linkPath)
	}
	return model.NewNote(base, crawler.LinkTitle(c.Text, c.URL), c.Description, module)
}

func recordOutcome(result *SourceResult, candidate model.CandidateLink, err error) {
	switch {
	case err == nil:
		result.Added++
	case errors.Is(err, errDuplicate):
		result.Counters.Duplicates++
		log.Debugw("already exists", "url", candidate.URL)
	case model.IsKind(err, model.ExtractionMiss):
		result.Counters.ExtractionMisses++
		log.Debugw("candidate discarded", "url", candidate.URL, "error", err)
	case model.IsKind(err, model.FetchFailure):
		result.Counters.FetchFailures++
		log.Warnw("candidate skipped", "url", candidate.URL, "error", err)
	case model.IsKind(err, model.ValidationFailure):
		result.Counters.ValidationFails++
		log.Warnw("candidate rejected", "url", candidate.URL, "error", err)
	default:
		result.Counters.StoreFailures++
		log.Errorw("failed to persist candidate", "url", candidate.URL, "error", err)
	}
}

func (p *IngestionPipeline) writeRun(ctx context.Context, run model.ScrapeRun) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runLogTimeout)
	defer cancel()

	if err := p.records.Insert(ctx, model.CollectionRuns, run.Row()); err != nil {
		log.Errorw("failed to log scraping run", "source", run.Source, "error", err)
	}
}

func (p *IngestionPipeline) publish(ctx context.Context, event notify.Event) {
	if err := p.notifier.Publish(ctx, event); err != nil {
		log.Warnw("failed to publish event", "type", event.Type, "error", err)
	}
}

func failSource(src model.Source, result SourceResult, err error) SourceResult {
	log.Errorw("error scraping source", "source", src.URL, "error", err)
	logState(src, stateFailed)
	return SourceResult{
		Source:   src.URL,
		Strategy: result.Strategy,
		Status:   model.RunStatusFailed,
		Error:    err.Error(),
	}
}

func logState(src model.Source, state string) {
	log.Debugw("source state", "source", src.URL, "state", state)
}

func addCounters(total *model.RunCounters, c model.RunCounters) {
	total.Duplicates += c.Duplicates
	total.ExtractionMisses += c.ExtractionMisses
	total.FetchFailures += c.FetchFailures
	total.ValidationFails += c.ValidationFails
	total.StoreFailures += c.StoreFailures
}

func errorFromString(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

// urlPath returns the unescaped path of rawURL, leaving hosts such as
// "ktu2024.web.app" out of metadata extraction
func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if p, err := url.PathUnescape(u.Path); err == nil {
		return p
	}
	return u.Path
}

// String renders a one-line summary for CLI output
func (s RunSummary) String() string {
	return fmt.Sprintf("status=%s sources=%d found=%d added=%d duplicates=%d took=%s",
		s.Status, len(s.Sources), s.Found, s.Added, s.Counters.Duplicates, s.Duration.Round(time.Millisecond))
}
