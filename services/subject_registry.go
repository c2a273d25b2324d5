package services

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sahilchouksey/ktu-notes-scraper/database"
	"github.com/sahilchouksey/ktu-notes-scraper/model"
)

// SubjectRegistry makes sure a subject row exists before any document that
// references it is inserted. Known subject ids are cached for the lifetime of
// the registry, which the pipeline creates once per run.
type SubjectRegistry struct {
	records database.RecordStore

	mu    sync.RWMutex
	known map[string]struct{}
}

// NewSubjectRegistry creates an empty registry
func NewSubjectRegistry(records database.RecordStore) *SubjectRegistry {
	return &SubjectRegistry{
		records: records,
		known:   make(map[string]struct{}),
	}
}

// Ensure looks up the subject by its lowercased code and inserts a synthesized
// row when it is missing. Failures are not cached.
func (r *SubjectRegistry) Ensure(ctx context.Context, code string) error {
	id := model.SubjectID(code)

	r.mu.RLock()
	_, ok := r.known[id]
	r.mu.RUnlock()
	if ok {
		return nil
	}

	rows, err := r.records.FindByField(ctx, model.CollectionSubjects, "id", id)
	if err != nil {
		return model.NewIngestError(model.StoreFailure, "find subject", id, err)
	}

	if len(rows) == 0 {
		subject := model.NewSubject(code)
		if err := r.records.Insert(ctx, model.CollectionSubjects, subject.Row()); err != nil {
			return model.NewIngestError(model.StoreFailure, "insert subject", id, err)
		}
		log.Infow("created subject", "id", subject.ID, "name", subject.Name, "semester", subject.Semester)
	}

	r.mu.Lock()
	r.known[id] = struct{}{}
	r.mu.Unlock()
	return nil
}

// Known reports whether the subject was already ensured during this run
func (r *SubjectRegistry) Known(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.known[model.SubjectID(code)]
	return ok
}
