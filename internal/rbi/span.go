package rbi

import "fmt"

// Position is a point in a document. Lines are 1-based, columns 0-based.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Document identifies where a tree came from.
// Remote documents (Sorbet's payload) are reported by URL and anchor line.
type Document struct {
	Path   string `json:"path"`
	Remote bool   `json:"remote,omitempty"`
}

// Span is a half-open text range inside a document.
type Span struct {
	Document Document `json:"document"`
	Start    Position `json:"start"`
	End      Position `json:"end"`
}

// String renders the span as a location reference:
// path:startLine:startCol-endLine:endCol, or url#Lline for remote documents.
func (s Span) String() string {
	if s.Document.Remote {
		return fmt.Sprintf("%s#L%d", s.Document.Path, s.Start.Line)
	}
	return fmt.Sprintf("%s:%d:%d-%d:%d", s.Document.Path, s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Before reports whether s starts before o in the same document.
func (s Span) Before(o Span) bool {
	if s.Start.Line != o.Start.Line {
		return s.Start.Line < o.Start.Line
	}
	return s.Start.Column < o.Start.Column
}
