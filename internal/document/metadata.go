package document

import (
	"regexp"
	"strings"
)

var (
	lineBreak = regexp.MustCompile(`\r\n|\r|\n`)

	compteToken     = regexp.MustCompile(`(?i)compte`)
	renduToken      = regexp.MustCompile(`(?i)rendu`)
	ordonnanceToken = regexp.MustCompile(`(?i)ordonnance`)
	doctorToken     = regexp.MustCompile(`(?i)dr`)

	dayFirstDate  = regexp.MustCompile(`\d{2}[-/]\d{2}[-/]\d{4}`)
	yearFirstDate = regexp.MustCompile(`\d{4}[-/]\d{2}[-/]\d{2}`)

	// "Paris, le 12/05/2021," : the date follows "le " and is closed by a comma
	datedDayFirst  = regexp.MustCompile(`(?i)le\s(\d{2}[-/]\d{2}[-/]\d{4}),`)
	datedYearFirst = regexp.MustCompile(`(?i)le\s(\d{4}[-/]\d{2}[-/]\d{2}),`)
)

// Metadata fields inferred from the document text. Date is the raw matched text.
type Metadata struct {
	Title  string
	Date   string
	Author string
}

// TitleRule finds a title, and possibly a date, in the document text.
type TitleRule interface {
	Name() string
	// Apply returns ok=false when the rule does not recognize the document.
	Apply(text string, lines []string) (title, date string, ok bool)
}

// CompteRenduRule reports: the first line where "compte" is followed by "rendu".
// The title is "Compte" plus the rest of the line; the date is looked up in the title only.
type CompteRenduRule struct{}

func (CompteRenduRule) Name() string { return "compte_rendu" }

func (CompteRenduRule) Apply(_ string, lines []string) (string, string, bool) {
	for _, line := range lines {
		for _, loc := range compteToken.FindAllStringIndex(line, -1) {
			rest := line[loc[1]:]
			if !renduToken.MatchString(rest) {
				continue
			}
			title := "Compte" + rest
			return title, firstDate(title), true
		}
	}
	return "", "", false
}

// OrdonnanceRule prescriptions: the first line mentioning "ordonnance". The date is taken
// from the letter header ("le dd/mm/yyyy,") anywhere in the text.
type OrdonnanceRule struct{}

func (OrdonnanceRule) Name() string { return "ordonnance" }

func (OrdonnanceRule) Apply(text string, lines []string) (string, string, bool) {
	for _, line := range lines {
		loc := ordonnanceToken.FindStringIndex(line)
		if loc == nil {
			continue
		}
		title := "Ordonnance " + strings.TrimSpace(line[loc[1]:])
		return title, headerDate(text), true
	}
	return "", "", false
}

// DefaultTitleRules in precedence order.
var DefaultTitleRules = []TitleRule{CompteRenduRule{}, OrdonnanceRule{}}

// MetadataExtractor applies the title rules in order, first match wins, then the author rule.
type MetadataExtractor struct {
	Rules []TitleRule
}

// NewMetadataExtractor uses DefaultTitleRules.
func NewMetadataExtractor() *MetadataExtractor {
	return &MetadataExtractor{Rules: DefaultTitleRules}
}

// Extract text is expected trimmed.
func (e *MetadataExtractor) Extract(text string) Metadata {
	lines := SplitLines(text)

	var md Metadata
	for _, rule := range e.Rules {
		if title, date, ok := rule.Apply(text, lines); ok {
			md.Title, md.Date = title, date
			break
		}
	}
	md.Author = Author(text)
	return md
}

// Author the last non-empty line when it contains "dr" in any case, "" otherwise.
func Author(text string) string {
	lines := SplitLines(strings.TrimSpace(text))
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if doctorToken.MatchString(line) {
			return line
		}
		return ""
	}
	return ""
}

// SplitLines splits on \r\n, \r and \n. A last line without a terminator is kept.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return lineBreak.Split(text, -1)
}

func firstDate(s string) string {
	if m := dayFirstDate.FindString(s); m != "" {
		return m
	}
	return yearFirstDate.FindString(s)
}

func headerDate(text string) string {
	if m := datedDayFirst.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := datedYearFirst.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
