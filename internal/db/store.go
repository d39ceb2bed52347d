package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"case-rag/internal/models"
)

// Store is the Postgres-backed chunk and document store.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FetchChunks loads chunks for a case (newest documents first) or for a
// single document, ordered by chunk index within each document.
func (s *Store) FetchChunks(ctx context.Context, scope models.Scope, ownerID string, limit int) ([]models.Chunk, error) {
	var rows []Chunk
	q := s.db.NewSelect().
		Model(&rows).
		Relation("Document", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("display_name", "uploaded_at")
		}).
		Limit(limit)

	switch scope {
	case models.ScopeDocument:
		q = q.Where("c.document_id = ?", ownerID).Order("c.chunk_index")
	default:
		q = q.Where("c.case_id = ?", ownerID).OrderExpr("document.uploaded_at DESC, c.document_id, c.chunk_index")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch chunks for %s %s: %w", scope, ownerID, err)
	}
	return toModels(rows), nil
}

func (s *Store) FetchLeadingChunks(ctx context.Context, documentID string, n int) ([]models.Chunk, error) {
	var rows []Chunk
	err := s.db.NewSelect().
		Model(&rows).
		Relation("Document", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("display_name")
		}).
		Where("c.document_id = ?", documentID).
		Order("c.chunk_index").
		Limit(n).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leading chunks for %s: %w", documentID, err)
	}
	return toModels(rows), nil
}

func (s *Store) ListDocuments(ctx context.Context, scope models.Scope, ownerID string, limit int) ([]models.DocumentRef, error) {
	var docs []Document
	q := s.db.NewSelect().Model(&docs).OrderExpr("d.uploaded_at DESC").Limit(limit)
	if scope == models.ScopeDocument {
		q = q.Where("d.id = ?", ownerID)
	} else {
		q = q.Where("d.case_id = ?", ownerID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list documents for %s %s: %w", scope, ownerID, err)
	}

	refs := make([]models.DocumentRef, len(docs))
	for i := range docs {
		refs[i] = docs[i].toRef()
	}
	return refs, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (models.DocumentRef, error) {
	doc := new(Document)
	err := s.db.NewSelect().Model(doc).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DocumentRef{}, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc.toRef(), nil
}

// SaveDocument writes a document and its chunks in one transaction.
func (s *Store) SaveDocument(ctx context.Context, ref models.DocumentRef, chunks []models.Chunk) error {
	doc := fromRef(ref)
	doc.ChunkCount = len(chunks)

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(doc).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}

		rows := make([]Chunk, len(chunks))
		for i, c := range chunks {
			rows[i] = Chunk{
				DocumentID: ref.ID,
				CaseID:     ref.CaseID,
				ChunkIndex: c.Index,
				Content:    c.Content,
				Embedding:  c.Embedding,
			}
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		return nil
	})
}

// DeleteDocument removes a document and its chunks and returns what was deleted.
func (s *Store) DeleteDocument(ctx context.Context, id string) (models.DocumentRef, error) {
	doc := new(Document)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Chunk)(nil)).Where("document_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		_, err := tx.NewDelete().Model(doc).Where("id = ?", id).Returning("*").Exec(ctx)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && doc.ID == "") {
			return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.DocumentRef{}, err
	}
	return doc.toRef(), nil
}

func (s *Store) SaveLead(ctx context.Context, lead models.Lead) error {
	row := &Lead{
		ID:        lead.ID,
		FirmID:    lead.FirmID,
		Name:      lead.Name,
		Email:     lead.Email,
		Phone:     lead.Phone,
		CaseType:  lead.CaseType,
		Message:   lead.Message,
		Source:    lead.Source,
		CreatedAt: lead.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// Increment bumps the counter for key in the current fixed window and returns
// the new count. Expired windows for the key are pruned on the way.
func (s *Store) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	start := WindowStart(time.Now(), window)

	if _, err := s.db.NewDelete().Model((*RateCounter)(nil)).
		Where("key = ?", key).
		Where("window_start < ?", start).
		Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to prune counters: %w", err)
	}

	counter := &RateCounter{Key: key, WindowStart: start, Count: 1}
	err := s.db.NewInsert().
		Model(counter).
		On("CONFLICT (key, window_start) DO UPDATE").
		Set("count = rc.count + 1").
		Returning("count").
		Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	return counter.Count, nil
}

// WindowStart truncates t to the beginning of its fixed window.
func WindowStart(t time.Time, window time.Duration) time.Time {
	if window <= 0 {
		return t.UTC()
	}
	return t.UTC().Truncate(window)
}

func toModels(rows []Chunk) []models.Chunk {
	out := make([]models.Chunk, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out
}
