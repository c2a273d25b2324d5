package model

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DocumentKind distinguishes the two persisted document variants
type DocumentKind string

const (
	DocumentKindNote  DocumentKind = "note"
	DocumentKindPaper DocumentKind = "paper"
)

// Collection returns the record collection that holds documents of this kind.
// Notes and papers never share a collection.
func (k DocumentKind) Collection() Collection {
	if k == DocumentKindPaper {
		return CollectionPapers
	}
	return CollectionNotes
}

// ExamType classifies a question paper
type ExamType string

const (
	ExamTypeRegular       ExamType = "regular"
	ExamTypeSupplementary ExamType = "supplementary"
	ExamTypeModel         ExamType = "model"
	ExamTypeSolved        ExamType = "solved"
)

// Paper years outside this window are rejected
const (
	MinPaperYear = 2010
	MaxPaperYear = 2029
)

var validate = validator.New()

// Document is a discovered file that is ready to be persisted.
// Implementations are plain values and are never mutated after construction.
type Document interface {
	Kind() DocumentKind
	Subject() string
	File() string
	Source() string
	Size() *int64
	// StorageFilename is deterministic for the same logical file, so re-deriving
	// it on a later run lets the content store recognise the blob.
	StorageFilename() string
	// Row returns the record fields inserted into Kind().Collection()
	Row(subjectID, storedURL string) Row
	Label() string
	// WithFileSize returns a copy carrying the given size
	WithFileSize(size int64) Document
}

// DocumentBase holds the fields shared by notes and papers
type DocumentBase struct {
	SubjectCode   string `validate:"required,alphanum,uppercase"`
	FileURL       string `validate:"required,url"`
	SourceURL     string `validate:"required"`
	FileSizeBytes *int64
	SourceName    string
}

func (d DocumentBase) Subject() string { return d.SubjectCode }
func (d DocumentBase) File() string    { return d.FileURL }
func (d DocumentBase) Source() string  { return d.SourceURL }
func (d DocumentBase) Size() *int64    { return d.FileSizeBytes }

// WithSize returns a copy of the base carrying the given size
func (d DocumentBase) WithSize(size int64) DocumentBase {
	if size > 0 {
		d.FileSizeBytes = &size
	}
	return d
}

// Note is a lecture-notes document
type Note struct {
	DocumentBase
	Title        string `validate:"required"`
	Description  string
	ModuleNumber int `validate:"gte=1"`
}

// NewNote validates and builds a note. A module number below one becomes one.
func NewNote(base DocumentBase, title, description string, module int) (Note, error) {
	if module < 1 {
		module = 1
	}
	n := Note{
		DocumentBase: base,
		Title:        strings.TrimSpace(title),
		Description:  strings.TrimSpace(description),
		ModuleNumber: module,
	}
	if err := validate.Struct(n); err != nil {
		return Note{}, NewIngestError(ExtractionMiss, "build note", base.FileURL, err)
	}
	return n, nil
}

func (n Note) Kind() DocumentKind { return DocumentKindNote }

func (n Note) StorageFilename() string {
	return fmt.Sprintf("notes/%s_%d_%s.pdf", strings.ToLower(n.SubjectCode), n.ModuleNumber, FileHash(n.FileURL))
}

func (n Note) Row(subjectID, storedURL string) Row {
	return Row{
		"title":           n.Title,
		"description":     nullable(n.Description),
		"subject_id":      subjectID,
		"module_number":   n.ModuleNumber,
		"file_url":        storedURL,
		"file_size_bytes": n.FileSizeBytes,
		"source_url":      n.SourceURL,
		"source_name":     n.SourceName,
		"is_verified":     false,
		"is_published":    false,
	}
}

func (n Note) WithFileSize(size int64) Document {
	n.DocumentBase = n.DocumentBase.WithSize(size)
	return n
}

func (n Note) Label() string {
	return fmt.Sprintf("%s module %d: %s", n.SubjectCode, n.ModuleNumber, n.Title)
}

// Paper is a question paper
type Paper struct {
	DocumentBase
	Year     int      `validate:"gte=2010,lte=2029"`
	ExamType ExamType `validate:"oneof=regular supplementary model solved"`
	Month    string
}

// NewPaper validates and builds a paper. An empty exam type means regular.
func NewPaper(base DocumentBase, year int, examType ExamType, month string) (Paper, error) {
	if examType == "" {
		examType = ExamTypeRegular
	}
	p := Paper{
		DocumentBase: base,
		Year:         year,
		ExamType:     examType,
		Month:        month,
	}
	if err := validate.Struct(p); err != nil {
		return Paper{}, NewIngestError(ExtractionMiss, "build paper", base.FileURL, err)
	}
	return p, nil
}

func (p Paper) Kind() DocumentKind { return DocumentKindPaper }

func (p Paper) StorageFilename() string {
	return fmt.Sprintf("papers/paper_%s_%d_%s_%s.pdf", strings.ToLower(p.SubjectCode), p.Year, p.ExamType, FileHash(p.FileURL))
}

func (p Paper) Row(subjectID, storedURL string) Row {
	return Row{
		"subject_id":      subjectID,
		"year":            p.Year,
		"exam_type":       string(p.ExamType),
		"month":           nullable(p.Month),
		"file_url":        storedURL,
		"file_size_bytes": p.FileSizeBytes,
		"source_url":      p.SourceURL,
		"source_name":     p.SourceName,
		"is_verified":     false,
		"is_published":    false,
	}
}

func (p Paper) WithFileSize(size int64) Document {
	p.DocumentBase = p.DocumentBase.WithSize(size)
	return p
}

func (p Paper) Label() string {
	if p.Month != "" {
		return fmt.Sprintf("%s %s %d (%s)", p.SubjectCode, p.Month, p.Year, p.ExamType)
	}
	return fmt.Sprintf("%s %d (%s)", p.SubjectCode, p.Year, p.ExamType)
}

// FileHash is the first 16 hex characters of the md5 digest of a file URL
func FileHash(fileURL string) string {
	sum := md5.Sum([]byte(fileURL))
	return hex.EncodeToString(sum[:])[:16]
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
