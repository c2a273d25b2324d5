package model

// CandidateLink is a discovered download link plus metadata hints.
// It has not been validated or persisted yet.
type CandidateLink struct {
	URL          string
	Text         string
	ModuleNumber int

	// Hints filled in by strategies that know more about the page
	PageURL     string
	PageTitle   string
	Description string
	SubjectCode string
	Kind        DocumentKind
}
