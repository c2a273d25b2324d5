package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func testBase(code string) DocumentBase {
	return DocumentBase{
		SubjectCode: code,
		FileURL:     "https://example.com/files/a.pdf",
		SourceURL:   "https://example.com/files/a.pdf",
		SourceName:  "example.com",
	}
}

func TestNewPaperYearWindow(t *testing.T) {
	tests := []struct {
		year    int
		wantErr bool
	}{
		{2009, true},
		{2010, false},
		{2022, false},
		{2029, false},
		{2031, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.year), func(t *testing.T) {
			_, err := NewPaper(testBase("CST202"), tt.year, ExamTypeRegular, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPaper(%d) error = %v, wantErr %v", tt.year, err, tt.wantErr)
			}
			if err != nil && !IsKind(err, ExtractionMiss) {
				t.Errorf("NewPaper(%d) error kind = %q, want %q", tt.year, KindOf(err), ExtractionMiss)
			}
		})
	}
}

func TestNewPaperDefaultsExamType(t *testing.T) {
	p, err := NewPaper(testBase("CST202"), 2022, "", "")
	if err != nil {
		t.Fatalf("NewPaper() error = %v", err)
	}
	if p.ExamType != ExamTypeRegular {
		t.Errorf("ExamType = %q, want %q", p.ExamType, ExamTypeRegular)
	}
	if p.Kind().Collection() != CollectionPapers {
		t.Errorf("Collection = %q, want %q", p.Kind().Collection(), CollectionPapers)
	}
}

func TestNewNoteRequiresSubjectCode(t *testing.T) {
	if _, err := NewNote(testBase(""), "Notes", "", 1); err == nil {
		t.Fatal("NewNote() with empty subject code should fail")
	}
	if _, err := NewNote(testBase("cst201"), "Notes", "", 1); err == nil {
		t.Fatal("NewNote() with lowercase subject code should fail")
	}

	n, err := NewNote(testBase("CST201"), "  Module notes ", "", 0)
	if err != nil {
		t.Fatalf("NewNote() error = %v", err)
	}
	if n.ModuleNumber != 1 {
		t.Errorf("ModuleNumber = %d, want 1", n.ModuleNumber)
	}
	if n.Title != "Module notes" {
		t.Errorf("Title = %q, want trimmed title", n.Title)
	}
}

func TestStorageFilenameIsDeterministic(t *testing.T) {
	n1, _ := NewNote(testBase("CST201"), "Notes", "", 2)
	n2, _ := NewNote(testBase("CST201"), "Other title", "", 2)
	if n1.StorageFilename() != n2.StorageFilename() {
		t.Errorf("same file gave different names: %q vs %q", n1.StorageFilename(), n2.StorageFilename())
	}
	want := "notes/cst201_2_" + FileHash("https://example.com/files/a.pdf") + ".pdf"
	if n1.StorageFilename() != want {
		t.Errorf("StorageFilename() = %q, want %q", n1.StorageFilename(), want)
	}

	p, _ := NewPaper(testBase("CST202"), 2022, ExamTypeSupplementary, "May")
	if !strings.HasPrefix(p.StorageFilename(), "papers/paper_cst202_2022_supplementary_") {
		t.Errorf("paper StorageFilename() = %q", p.StorageFilename())
	}
	if len(FileHash("x")) != 16 {
		t.Errorf("FileHash length = %d, want 16", len(FileHash("x")))
	}
}

func TestNoteRowIsUnpublished(t *testing.T) {
	n, _ := NewNote(testBase("CST201"), "Notes", "", 3)
	row := n.Row("cst201", "https://cdn.example.com/notes/x.pdf")
	if row["subject_id"] != "cst201" || row["module_number"] != 3 {
		t.Errorf("unexpected row: %v", row)
	}
	if row["is_published"] != false || row["is_verified"] != false {
		t.Errorf("scraped rows must await review: %v", row)
	}
	if row["description"] != nil {
		t.Errorf("empty description should be stored as NULL, got %v", row["description"])
	}
	for column := range row {
		if !CollectionNotes.HasColumn(column) {
			t.Errorf("row column %q is not a notes column", column)
		}
	}
}

func TestNewSubject(t *testing.T) {
	tests := []struct {
		code     string
		wantID   string
		wantName string
		wantSem  int
	}{
		{"CST201", "cst201", "CST 201", 2},
		{"21CST201", "21cst201", "CST 201 (2021 scheme)", 2},
		{"MAT101", "mat101", "MAT 101", 1},
		{"CSST9001", "csst9001", "CSST 9001", 1},
		{"HUT0", "hut0", "HUT 0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s := NewSubject(tt.code)
			if s.ID != tt.wantID || s.Name != tt.wantName || s.Semester != tt.wantSem {
				t.Errorf("NewSubject(%q) = {%q %q %d}, want {%q %q %d}",
					tt.code, s.ID, s.Name, s.Semester, tt.wantID, tt.wantName, tt.wantSem)
			}
			if s.Credits != DefaultSubjectCredits {
				t.Errorf("Credits = %d, want %d", s.Credits, DefaultSubjectCredits)
			}
		})
	}
}

func TestIngestErrorKinds(t *testing.T) {
	base := errors.New("connection reset")
	err := fmt.Errorf("source failed: %w", NewIngestError(FetchFailure, "fetch", "https://example.com", base))

	if !errors.Is(err, &IngestError{Kind: FetchFailure}) {
		t.Error("errors.Is should match on kind")
	}
	if errors.Is(err, &IngestError{Kind: StoreFailure}) {
		t.Error("errors.Is should not match a different kind")
	}
	if !errors.Is(err, base) {
		t.Error("IngestError should unwrap to the cause")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf(plain error) should be empty")
	}
}
