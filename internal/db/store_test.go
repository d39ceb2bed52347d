package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"case-rag/internal/config"
	"case-rag/internal/models"
)

func TestWindowStart(t *testing.T) {
	ts := time.Date(2026, 3, 4, 10, 17, 42, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 4, 10, 17, 0, 0, time.UTC), WindowStart(ts, time.Minute))
	assert.Equal(t, time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC), WindowStart(ts, time.Hour))
	assert.Equal(t, ts, WindowStart(ts, 0))
}

func TestChunkToModel(t *testing.T) {
	c := &Chunk{
		DocumentID: "d1",
		CaseID:     "c1",
		ChunkIndex: 2,
		Content:    "body",
		Embedding:  models.Vector{1, 2},
		Document:   &Document{DisplayName: "Lease.pdf"},
	}
	assert.Equal(t, models.Chunk{
		OwnerID:      "c1",
		DocumentID:   "d1",
		DocumentName: "Lease.pdf",
		Index:        2,
		Content:      "body",
		Embedding:    models.Vector{1, 2},
	}, c.toModel())
}

func TestConnectDB_Validation(t *testing.T) {
	_, err := ConnectDB(&config.DatabaseConfig{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = ConnectDB(&config.DatabaseConfig{DSN: "postgres://x", Driver: "mysql"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

// newTestStore connects to the database named by CASE_RAG_TEST_DSN, which must
// have the pgvector extension available.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("CASE_RAG_TEST_DSN")
	if dsn == "" {
		t.Skip("CASE_RAG_TEST_DSN not set")
	}

	sqldb, err := ConnectDB(&config.DatabaseConfig{DSN: dsn})
	require.NoError(t, err)
	bdb := NewDB(sqldb, false)

	ctx := context.Background()
	require.NoError(t, DropTables(ctx, bdb))
	require.NoError(t, InitDB(ctx, bdb, 2))
	t.Cleanup(func() { bdb.Close() })
	return NewStore(bdb)
}

func TestStore_DocumentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := models.DocumentRef{ID: uuid.NewString(), CaseID: "case-1", DisplayName: "Exhibit A.pdf", UploadedAt: time.Now().Add(-time.Hour)}
	newer := models.DocumentRef{ID: uuid.NewString(), CaseID: "case-1", DisplayName: "Lease.pdf", RawTextPath: "cases/case-1/lease.pdf", UploadedAt: time.Now()}

	require.NoError(t, s.SaveDocument(ctx, older, []models.Chunk{{Index: 0, Content: "exhibit", Embedding: models.Vector{0, 1}}}))
	require.NoError(t, s.SaveDocument(ctx, newer, []models.Chunk{
		{Index: 0, Content: "rent", Embedding: models.Vector{1, 0}},
		{Index: 1, Content: "pets"},
	}))

	docs, err := s.ListDocuments(ctx, models.ScopeCase, "case-1", 200)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Lease.pdf", docs[0].DisplayName)
	assert.Equal(t, 2, docs[0].ChunkCount)

	chunks, err := s.FetchChunks(ctx, models.ScopeCase, "case-1", 200)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Lease.pdf", chunks[0].DocumentName)
	assert.Equal(t, models.Vector{1, 0}, chunks[0].Embedding)
	assert.Nil(t, chunks[1].Embedding)

	leading, err := s.FetchLeadingChunks(ctx, newer.ID, 3)
	require.NoError(t, err)
	require.Len(t, leading, 2)
	assert.Equal(t, 0, leading[0].Index)

	deleted, err := s.DeleteDocument(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, "cases/case-1/lease.pdf", deleted.RawTextPath)

	chunks, err = s.FetchChunks(ctx, models.ScopeDocument, newer.ID, 500)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	_, err = s.GetDocument(ctx, newer.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.DeleteDocument(ctx, newer.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_Increment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := s.Increment(ctx, "lead:203.0.113.9", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
