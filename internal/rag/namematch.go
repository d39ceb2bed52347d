package rag

import (
	"context"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"case-rag/internal/models"
	"case-rag/internal/parser"
)

// NormalizeName lowercases s, drops everything from the last '.' and keeps
// only letters and digits. Dotfiles such as ".env" normalize to "".
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[:i]
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// MatchDocuments returns up to limit documents whose normalized name occurs in
// the normalized question, in the order given.
func MatchDocuments(question string, docs []models.DocumentRef, limit int) []models.DocumentRef {
	q := NormalizeName(question)
	if q == "" || limit <= 0 {
		return nil
	}

	var matched []models.DocumentRef
	for _, d := range docs {
		name := NormalizeName(d.DisplayName)
		// an empty name would match every question
		if name == "" || !strings.Contains(q, name) {
			continue
		}
		matched = append(matched, d)
		if len(matched) == limit {
			break
		}
	}
	return matched
}

// Fallback pulls leading content from documents the question names.
type Fallback struct {
	store ChunkStore
	files FileSource
}

func NewFallback(store ChunkStore, files FileSource) *Fallback {
	return &Fallback{store: store, files: files}
}

// Contexts never fails: documents whose content cannot be read are logged and skipped.
func (f *Fallback) Contexts(ctx context.Context, question string, docs []models.DocumentRef, params models.ScopeParams) []models.ScoredContext {
	var out []models.ScoredContext
	for _, doc := range MatchDocuments(question, docs, params.MatchLimit) {
		c, ok := f.documentContext(ctx, doc, params)
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fallback) documentContext(ctx context.Context, doc models.DocumentRef, params models.ScopeParams) (models.ScoredContext, bool) {
	logger := log.With().Str("document_id", doc.ID).Str("document", doc.DisplayName).Logger()

	chunks, err := f.store.FetchLeadingChunks(ctx, doc.ID, params.LeadingChunks)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch leading chunks for named document")
		return models.ScoredContext{}, false
	}

	if len(chunks) > 0 {
		parts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			parts = append(parts, c.Content)
		}
		return models.ScoredContext{
			Label:   Label(doc.DisplayName, chunks[0].Index),
			Content: strings.Join(parts, "\n"),
			Score:   1,
		}, true
	}

	excerpt, err := f.rawExcerpt(ctx, doc, params.ExcerptChars)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to extract excerpt for named document")
		return models.ScoredContext{}, false
	}
	if excerpt == "" {
		logger.Debug().Msg("Named document has no readable text")
		return models.ScoredContext{}, false
	}
	return models.ScoredContext{
		Label:   doc.DisplayName + " excerpt",
		Content: excerpt,
		Score:   1,
	}, true
}

func (f *Fallback) rawExcerpt(ctx context.Context, doc models.DocumentRef, maxChars int) (string, error) {
	if f.files == nil || doc.RawTextPath == "" {
		return "", nil
	}

	rc, err := f.files.Download(ctx, doc.RawTextPath)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	name := path.Base(doc.RawTextPath)
	if path.Ext(name) == "" {
		name = doc.DisplayName
	}
	text, err := parser.ExtractFromReader(name, io.LimitReader(rc, maxDownloadBytes))
	if err != nil {
		return "", err
	}
	return parser.Excerpt(text, maxChars), nil
}
