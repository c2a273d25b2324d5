// Package extract recovers study-material metadata (subject code, module,
// year, exam type, month) from free text such as link text, URLs and page titles.
package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sahilchouksey/ktu-notes-scraper/model"
)

// subjectPatterns are tried against the uppercased text. The match that starts
// earliest in the text wins, a longer match breaks ties, and list order breaks
// the rest. "21CST201" therefore resolves to the year-prefixed pattern instead
// of the "CST201" inside it.
var subjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z]{2,3}\d{3}`),       // CST201, MAT101
	regexp.MustCompile(`[A-Z]{2,4}\d{4}`),       // CSST2001
	regexp.MustCompile(`\d{2}[A-Z]{2,3}\d{3}`), // 21CST201
}

var (
	moduleRegex = regexp.MustCompile(`(?i)module\s*[-:]?\s*(\d+)`)
	yearRegex   = regexp.MustCompile(`(?:^|\D)(20[12]\d)(?:\D|$)`)
)

// SubjectCode returns the first subject code found in text
func SubjectCode(text string) (string, bool) {
	upper := strings.ToUpper(text)

	start, end := -1, -1
	for _, pattern := range subjectPatterns {
		loc := pattern.FindStringIndex(upper)
		if loc == nil {
			continue
		}
		if start == -1 || loc[0] < start || (loc[0] == start && loc[1] > end) {
			start, end = loc[0], loc[1]
		}
	}

	if start == -1 {
		return "", false
	}
	return upper[start:end], true
}

// SubjectCodeFromURL looks for a subject code in the URL path only, so host
// names such as "ktu2024.web.app" are never mistaken for codes
func SubjectCodeFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	p := u.Path
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return SubjectCode(p)
}

// ModuleNumber returns the number following a "module" token, or 1
func ModuleNumber(text string) int {
	if n, ok := FindModuleNumber(text); ok {
		return n
	}
	return 1
}

// FindModuleNumber reports the module number only when text names one
func FindModuleNumber(text string) (int, bool) {
	match := moduleRegex.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ModuleNumberFrom returns the first module number found across texts, or 1
func ModuleNumberFrom(texts ...string) int {
	for _, text := range texts {
		if n, ok := FindModuleNumber(text); ok {
			return n
		}
	}
	return 1
}

// Year returns the first standalone four-digit year between 2010 and 2029
func Year(text string) (int, bool) {
	match := yearRegex.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	year, err := strconv.Atoi(match[1])
	if err != nil || year < model.MinPaperYear || year > model.MaxPaperYear {
		return 0, false
	}
	return year, true
}

var examTypeKeywords = []struct {
	examType model.ExamType
	keywords []string
}{
	{model.ExamTypeSupplementary, []string{"supplementary", "supple", "supply"}},
	{model.ExamTypeModel, []string{"model"}},
	{model.ExamTypeSolved, []string{"solved", "solution", "answer key"}},
}

// ExamType classifies paper text, defaulting to regular
func ExamType(text string) model.ExamType {
	lower := strings.ToLower(text)
	for _, entry := range examTypeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.examType
			}
		}
	}
	return model.ExamTypeRegular
}

var monthNames = map[string]string{
	"JAN": "January", "JANUARY": "January",
	"FEB": "February", "FEBRUARY": "February",
	"MAR": "March", "MARCH": "March",
	"APR": "April", "APRIL": "April",
	"MAY": "May",
	"JUN": "June", "JUNE": "June",
	"JUL": "July", "JULY": "July",
	"AUG": "August", "AUGUST": "August",
	"SEP": "September", "SEPT": "September", "SEPTEMBER": "September",
	"OCT": "October", "OCTOBER": "October",
	"NOV": "November", "NOVEMBER": "November",
	"DEC": "December", "DECEMBER": "December",
}

// yearBoundMonths are also common English words and only count next to a year
var yearBoundMonths = map[string]bool{"MAY": true}

var (
	monthToken = regexp.MustCompile(`[A-Z]+|\d+`)
	yearToken  = regexp.MustCompile(`^20[12]\d$`)
)

// Month returns the full name of the first month mentioned as a whole word
func Month(text string) (string, bool) {
	tokens := monthToken.FindAllString(strings.ToUpper(text), -1)
	for i, word := range tokens {
		name, ok := monthNames[word]
		if !ok {
			continue
		}
		if yearBoundMonths[word] && !nextToYear(tokens, i) {
			continue
		}
		return name, true
	}
	return "", false
}

func nextToYear(tokens []string, i int) bool {
	return (i > 0 && yearToken.MatchString(tokens[i-1])) ||
		(i+1 < len(tokens) && yearToken.MatchString(tokens[i+1]))
}

var paperKeywords = []string{"question", "paper", "exam", "pyq"}

// IsPaperText reports whether text reads like a question paper title
func IsPaperText(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range paperKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
