package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/utils/validation"
)

// DefaultSources is used when no sources file exists
var DefaultSources = []model.Source{
	{URL: "https://ktunotes.in/notes/"},
	{URL: "https://www.ktustudents.in/"},
	{URL: "https://www.keralanotes.com/p/ktu-study-materials.html?m=1"},
	{URL: "https://ktuspecial.in/"},
	{URL: "https://ktu2024.web.app/"},
}

// SourcesFile is the layout of sources.yaml
type SourcesFile struct {
	Sources []model.Source `yaml:"sources" validate:"dive"`
}

// LoadSources reads the sources file at path. A missing file yields the
// built-in list; a malformed one is an error.
func LoadSources(path string) ([]model.Source, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		sources := make([]model.Source, len(DefaultSources))
		copy(sources, DefaultSources)
		return sources, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates a sources document
func ParseSources(data []byte) ([]model.Source, error) {
	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	if err := validation.NewValidator().ValidateStruct(file); err != nil {
		return nil, fmt.Errorf("invalid sources file: %v", validation.FormatValidationErrors(err))
	}
	return file.Sources, nil
}
