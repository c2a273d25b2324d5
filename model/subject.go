package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultSubjectCredits is assigned to subjects created by the scraper
const DefaultSubjectCredits = 3

// Subject represents an academic subject referenced by notes and papers.
// Its identity is the lowercased subject code.
type Subject struct {
	ID        string    `gorm:"primaryKey;type:varchar(20)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Code      string    `gorm:"type:varchar(20);not null" json:"code"`
	Name      string    `gorm:"not null" json:"name"`
	Semester  int       `gorm:"default:1" json:"semester"`
	Credits   int       `gorm:"default:3" json:"credits"`
}

// TableName specifies the table name for Subject
func (Subject) TableName() string {
	return string(CollectionSubjects)
}

var subjectCodeParts = regexp.MustCompile(`^(\d{2})?([A-Z]+)(\d+)$`)

// SubjectID returns the record identity of a subject code
func SubjectID(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// NewSubject synthesizes a subject from its code.
// "CST201" -> name "CST 201", semester 2
// "21CST201" -> name "CST 201 (2021 scheme)", semester 2
func NewSubject(code string) Subject {
	code = strings.ToUpper(strings.TrimSpace(code))
	subject := Subject{
		ID:       SubjectID(code),
		Code:     code,
		Name:     code,
		Semester: 1,
		Credits:  DefaultSubjectCredits,
	}

	parts := subjectCodeParts.FindStringSubmatch(code)
	if parts == nil {
		return subject
	}

	cohort, dept, number := parts[1], parts[2], parts[3]
	subject.Name = fmt.Sprintf("%s %s", dept, number)
	if cohort != "" {
		subject.Name = fmt.Sprintf("%s (20%s scheme)", subject.Name, cohort)
	}

	// First digit of the numeric suffix is the semester
	if sem := int(number[0] - '0'); sem >= 1 && sem <= 8 {
		subject.Semester = sem
	}
	return subject
}

// Row returns the record fields of the subject
func (s Subject) Row() Row {
	return Row{
		"id":         s.ID,
		"code":       s.Code,
		"name":       s.Name,
		"semester":   s.Semester,
		"credits":    s.Credits,
		"created_at": time.Now().UTC(),
	}
}
