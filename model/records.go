package model

import "time"

// NoteRecord is the persisted form of a Note
type NoteRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Title         string    `gorm:"type:varchar(500);not null" json:"title"`
	Description   *string   `gorm:"type:text" json:"description,omitempty"`
	SubjectID     string    `gorm:"type:varchar(20);not null;index" json:"subject_id"`
	ModuleNumber  int       `gorm:"default:1" json:"module_number"`
	FileURL       string    `gorm:"type:varchar(1000);not null" json:"file_url"`
	FileSizeBytes *int64    `json:"file_size_bytes,omitempty"`
	SourceURL     string    `gorm:"type:varchar(1000);not null;index" json:"source_url"`
	SourceName    string    `gorm:"type:varchar(255)" json:"source_name"`
	IsVerified    bool      `gorm:"default:false" json:"is_verified"`
	IsPublished   bool      `gorm:"default:false" json:"is_published"`

	Subject Subject `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for NoteRecord
func (NoteRecord) TableName() string {
	return string(CollectionNotes)
}

// QuestionPaperRecord is the persisted form of a Paper
type QuestionPaperRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	SubjectID     string    `gorm:"type:varchar(20);not null;index" json:"subject_id"`
	Year          int       `gorm:"not null" json:"year"`
	ExamType      string    `gorm:"type:varchar(20);default:'regular'" json:"exam_type"`
	Month         *string   `gorm:"type:varchar(20)" json:"month,omitempty"`
	FileURL       string    `gorm:"type:varchar(1000);not null" json:"file_url"`
	FileSizeBytes *int64    `json:"file_size_bytes,omitempty"`
	SourceURL     string    `gorm:"type:varchar(1000);not null;index" json:"source_url"`
	SourceName    string    `gorm:"type:varchar(255)" json:"source_name"`
	IsVerified    bool      `gorm:"default:false" json:"is_verified"`
	IsPublished   bool      `gorm:"default:false" json:"is_published"`

	Subject Subject `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for QuestionPaperRecord
func (QuestionPaperRecord) TableName() string {
	return string(CollectionPapers)
}
