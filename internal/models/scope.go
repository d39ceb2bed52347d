package models

import "fmt"

// Scope selects whether retrieval runs over a whole case or a single document.
type Scope string

const (
	ScopeCase     Scope = "case"
	ScopeDocument Scope = "document"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeCase, ScopeDocument:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, s)
	}
}

// ScopeParams holds the per-scope retrieval limits.
type ScopeParams struct {
	TopK          int
	RowLimit      int
	ExcerptChars  int
	ListLimit     int
	MatchLimit    int
	LeadingChunks int
}
