// Package authors parses and checks plain-text credits files.
//
// The format is the conventional AUTHORS document: informal sections
// separated by heading lines of repeated '#' characters, with one
// contributor per line and optional affiliation or year annotations.
package authors

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is one contributor line.
type Entry struct {
	Name       string `json:"name"`
	Annotation string `json:"annotation,omitempty"` // affiliation, years, notes
	Line       int    `json:"line"`                 // 1-based line number in the source
}

// Section is a titled group of entries. Entries before the first heading
// land in a section with an empty title.
type Section struct {
	Title   string  `json:"title"`
	Entries []Entry `json:"entries"`
}

// Document is a parsed credits file.
type Document struct {
	Sections []Section `json:"sections"`
}

// Problem is one check finding.
type Problem struct {
	Section string `json:"section,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// Report is the outcome of Check.
type Report struct {
	Valid    bool      `json:"valid"`
	Sections int       `json:"sections"`
	Entries  int       `json:"entries"`
	Problems []Problem `json:"problems,omitempty"`
}

// isRule reports whether a line is a heading rule: two or more '#'
// characters and nothing else.
func isRule(line string) bool {
	if len(line) < 2 {
		return false
	}
	for _, r := range line {
		if r != '#' {
			return false
		}
	}
	return true
}

// Parse reads a credits document. A rule line opens a heading: the next
// non-blank line becomes the new section's title, and a closing rule (if
// present) is swallowed. Everything else is an entry line.
func Parse(r io.Reader) (*Document, error) {
	scanner := bufio.NewScanner(r)

	doc := &Document{}
	current := Section{} // untitled preamble until the first heading
	expectTitle := false
	justTitled := false // the next rule closes the heading instead of opening one

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		if isRule(line) {
			if justTitled {
				justTitled = false
				continue
			}
			expectTitle = true
			continue
		}

		if expectTitle {
			if len(current.Entries) > 0 || current.Title != "" {
				doc.Sections = append(doc.Sections, current)
			}
			current = Section{Title: strings.TrimRight(line, ":")}
			expectTitle = false
			justTitled = true
			continue
		}

		justTitled = false
		current.Entries = append(current.Entries, parseEntry(line, lineNo))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading credits file: %w", err)
	}

	if len(current.Entries) > 0 || current.Title != "" {
		doc.Sections = append(doc.Sections, current)
	}
	return doc, nil
}

// ParseFile parses the credits file at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// parseEntry splits a contributor line into name and annotation. Bullet
// prefixes are stripped; a trailing parenthetical, a column gap of two
// or more spaces, or a comma-separated tail becomes the annotation.
func parseEntry(line string, lineNo int) Entry {
	line = strings.TrimSpace(strings.TrimLeft(line, "*-"))

	// Trailing parenthetical: "Name Surname (Institution, 2019-2023)"
	if strings.HasSuffix(line, ")") {
		if open := strings.LastIndex(line, "("); open > 0 {
			name := strings.TrimSpace(line[:open])
			annotation := strings.TrimSpace(line[open+1 : len(line)-1])
			if name != "" {
				return Entry{Name: name, Annotation: annotation, Line: lineNo}
			}
		}
	}

	// Column gap: "Name Surname  Institution" (two or more spaces)
	if gap := strings.Index(line, "  "); gap > 0 {
		return Entry{
			Name:       strings.TrimSpace(line[:gap]),
			Annotation: strings.TrimSpace(line[gap:]),
			Line:       lineNo,
		}
	}

	// Comma tail: "Name Surname, Institution"
	if comma := strings.Index(line, ","); comma > 0 {
		return Entry{
			Name:       strings.TrimSpace(line[:comma]),
			Annotation: strings.TrimSpace(line[comma+1:]),
			Line:       lineNo,
		}
	}

	return Entry{Name: line, Line: lineNo}
}

// Check validates a parsed document: the file must be non-empty, and
// within each section a name may appear at most once. The same name in
// two different sections is fine (e.g. former members who still
// contribute).
func Check(doc *Document) Report {
	report := Report{Valid: true, Sections: len(doc.Sections)}

	total := 0
	for _, sec := range doc.Sections {
		total += len(sec.Entries)

		seen := make(map[string]int) // lowercased name -> first line
		for _, e := range sec.Entries {
			key := strings.ToLower(e.Name)
			if first, dup := seen[key]; dup {
				report.Problems = append(report.Problems, Problem{
					Section: sec.Title,
					Line:    e.Line,
					Message: fmt.Sprintf("duplicate name %q (first seen on line %d)", e.Name, first),
				})
				continue
			}
			seen[key] = e.Line
		}
	}
	report.Entries = total

	if total == 0 && len(doc.Sections) == 0 {
		report.Problems = append(report.Problems, Problem{Message: "file has no content"})
	}

	report.Valid = len(report.Problems) == 0
	return report
}
