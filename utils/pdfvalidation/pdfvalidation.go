package pdfvalidation

import (
	"bytes"
	"fmt"
)

// Signature is the magic prefix every PDF file starts with
var Signature = []byte("%PDF-")

// PDFLimits defines the validation limits for downloaded files
type PDFLimits struct {
	MaxFileSizeMB    int    // Maximum file size in MB
	DocumentTypeName string // For error messages (e.g., "notes", "question paper")
}

// Default limits
var (
	NotesLimits = PDFLimits{
		MaxFileSizeMB:    100,
		DocumentTypeName: "notes",
	}

	PaperLimits = PDFLimits{
		MaxFileSizeMB:    50,
		DocumentTypeName: "question paper",
	}
)

// ValidationResult contains the result of PDF validation
type ValidationResult struct {
	Valid    bool
	FileSize int64
	Error    string
}

// HasSignature reports whether content starts with the PDF magic bytes
func HasSignature(content []byte) bool {
	return bytes.HasPrefix(content, Signature)
}

// ValidatePDFBytes validates downloaded content against the given limits.
// A body passes only when it carries the PDF signature; the declared content
// type is never trusted.
func ValidatePDFBytes(content []byte, limits PDFLimits) *ValidationResult {
	result := &ValidationResult{
		FileSize: int64(len(content)),
	}

	// 1. Validate file size
	if result.FileSize == 0 {
		result.Error = "Empty file"
		return result
	}
	maxSize := int64(limits.MaxFileSizeMB) * 1024 * 1024
	if result.FileSize > maxSize {
		result.Error = fmt.Sprintf("File size exceeds maximum allowed size of %dMB for %s",
			limits.MaxFileSizeMB, limits.DocumentTypeName)
		return result
	}

	// 2. Validate PDF header
	if HasSignature(content) {
		result.Valid = true
		return result
	}

	result.Error = "Invalid PDF file: missing PDF header"
	return result
}
