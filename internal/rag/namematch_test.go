package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"case-rag/internal/models"
)

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Exhibit A.pdf":               "exhibita",
		"  Police_Report (final).docx": "policereportfinal",
		"notes":                       "notes",
		"v1.2 draft.txt":              "v12draft",
		".env":                        "",
		"Déclaration.pdf":             "déclaration",
		"???.pdf":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), in)
	}
}

func TestMatchDocuments(t *testing.T) {
	docs := []models.DocumentRef{
		{ID: "1", DisplayName: "Exhibit A.pdf"},
		{ID: "2", DisplayName: "Exhibit B.pdf"},
	}

	got := MatchDocuments("please review exhibit a now", docs, 2)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	got = MatchDocuments("review exhibit b", docs, 2)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	assert.Empty(t, MatchDocuments("review exhibit c", docs, 2))
}

func TestMatchDocuments_DotfileNeverMatches(t *testing.T) {
	docs := []models.DocumentRef{{ID: "1", DisplayName: ".env"}}
	assert.Empty(t, MatchDocuments("which env vars did the client send", docs, 2))
}

func TestMatchDocuments_NotSymmetric(t *testing.T) {
	docs := []models.DocumentRef{{ID: "1", DisplayName: "Settlement Agreement Final.pdf"}}
	assert.Empty(t, MatchDocuments("settlement", docs, 2))
}

func TestMatchDocuments_CapsAndSkipsEmptyNames(t *testing.T) {
	docs := []models.DocumentRef{
		{ID: "0", DisplayName: "!!!.pdf"},
		{ID: "1", DisplayName: "lease.pdf"},
		{ID: "2", DisplayName: "Lease Addendum.pdf"},
		{ID: "3", DisplayName: "lease"},
	}
	got := MatchDocuments("compare lease and lease addendum", docs, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
}

func TestFallback_LeadingChunks(t *testing.T) {
	store := &fakeStore{
		leading: map[string][]models.Chunk{
			"d1": {
				{Index: 0, Content: "first"},
				{Index: 1, Content: "second"},
				{Index: 2, Content: "third"},
			},
		},
	}
	f := NewFallback(store, nil)
	docs := []models.DocumentRef{{ID: "d1", DisplayName: "Lease.pdf"}}

	got := f.Contexts(context.Background(), "summarize the lease", docs, caseParams())
	require.Len(t, got, 1)
	assert.Equal(t, models.ScoredContext{Label: "Lease.pdf#1", Content: "first\nsecond\nthird", Score: 1}, got[0])
	assert.Equal(t, 3, store.leadingN)
}

func TestFallback_RawExcerpt(t *testing.T) {
	store := &fakeStore{}
	files := &fakeFiles{objects: map[string]string{
		"cases/c1/d1/Exhibit A.txt": strings.Repeat("x", 5000),
	}}
	f := NewFallback(store, files)
	docs := []models.DocumentRef{{ID: "d1", DisplayName: "Exhibit A.txt", RawTextPath: "cases/c1/d1/Exhibit A.txt"}}

	got := f.Contexts(context.Background(), "what is in exhibit a?", docs, caseParams())
	require.Len(t, got, 1)
	assert.Equal(t, "Exhibit A.txt excerpt", got[0].Label)
	assert.Len(t, got[0].Content, 4000)
	assert.Equal(t, 1.0, got[0].Score)
}

func TestFallback_SkipsFailuresKeepsOthers(t *testing.T) {
	store := &fakeStore{
		leadingErr: map[string]error{"d1": errors.New("timeout")},
		leading: map[string][]models.Chunk{
			"d2": {{Index: 0, Content: "report body"}},
		},
	}
	files := &fakeFiles{err: errors.New("storage down")}
	f := NewFallback(store, files)
	docs := []models.DocumentRef{
		{ID: "d1", DisplayName: "Lease.pdf"},
		{ID: "d2", DisplayName: "Police Report.pdf"},
	}

	got := f.Contexts(context.Background(), "compare the lease with the police report", docs, caseParams())
	require.Len(t, got, 1)
	assert.Equal(t, "Police Report.pdf#1", got[0].Label)
}

func TestFallback_DownloadFailureSkipped(t *testing.T) {
	f := NewFallback(&fakeStore{}, &fakeFiles{err: errors.New("404")})
	docs := []models.DocumentRef{{ID: "d1", DisplayName: "Scan.txt", RawTextPath: "cases/c1/d1/Scan.txt"}}
	assert.Empty(t, f.Contexts(context.Background(), "open scan", docs, caseParams()))
}
