// Package ingest turns uploaded case files into stored, embedded chunks.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"case-rag/internal/embedding"
	"case-rag/internal/filestore"
	"case-rag/internal/helper"
	"case-rag/internal/models"
	"case-rag/internal/parser"
)

// DocumentWriter persists document metadata and chunks.
type DocumentWriter interface {
	SaveDocument(ctx context.Context, ref models.DocumentRef, chunks []models.Chunk) error
	DeleteDocument(ctx context.Context, id string) (models.DocumentRef, error)
}

type Upload struct {
	CaseID      string
	FileName    string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type Service struct {
	docs      DocumentWriter
	files     filestore.ObjectStore
	embedder  embeddings.Embedder
	chunkSize int
	now       func() time.Time
}

// NewService builds the ingest pipeline. A nil embedder stores chunks without embeddings.
func NewService(docs DocumentWriter, files filestore.ObjectStore, embedder embeddings.Embedder, chunkSize int) *Service {
	if chunkSize <= 0 {
		chunkSize = parser.DefaultChunkSize
	}
	return &Service{
		docs:      docs,
		files:     files,
		embedder:  embedder,
		chunkSize: chunkSize,
		now:       time.Now,
	}
}

// Ingest stores the raw file, extracts and chunks its text, embeds the chunks
// and saves everything. Extraction and embedding failures are logged and the
// document is kept so it can still be matched by name.
func (s *Service) Ingest(ctx context.Context, up Upload) (models.DocumentRef, error) {
	name := filepath.Base(strings.TrimSpace(up.FileName))
	if up.CaseID == "" || name == "" || name == "." || up.Reader == nil {
		return models.DocumentRef{}, fmt.Errorf("%w: case id and file are required", models.ErrInvalidInput)
	}
	if !parser.IsSupported(name) {
		return models.DocumentRef{}, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Ext(name))
	}

	data, err := io.ReadAll(up.Reader)
	if err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to read upload: %w", err)
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return models.DocumentRef{}, err
	}
	ref := models.DocumentRef{
		ID:          id,
		CaseID:      up.CaseID,
		DisplayName: name,
		RawTextPath: filestore.DocumentKey(up.CaseID, id, name),
		ContentType: up.ContentType,
		UploadedAt:  s.now().UTC(),
	}
	logger := log.With().Str("case_id", ref.CaseID).Str("document_id", ref.ID).Str("file", name).Logger()

	if err := s.files.Upload(ctx, ref.RawTextPath, bytes.NewReader(data), int64(len(data)), up.ContentType); err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to store upload: %w", err)
	}

	chunks := s.chunk(ctx, ref, data)
	ref.ChunkCount = len(chunks)

	if err := s.docs.SaveDocument(ctx, ref, chunks); err != nil {
		if rmErr := s.files.Remove(ctx, ref.RawTextPath); rmErr != nil {
			logger.Warn().Err(rmErr).Msg("Failed to remove orphaned upload")
		}
		return models.DocumentRef{}, fmt.Errorf("failed to save document: %w", err)
	}

	logger.Info().Int("chunks", len(chunks)).Msg("Document ingested")
	return ref, nil
}

func (s *Service) chunk(ctx context.Context, ref models.DocumentRef, data []byte) []models.Chunk {
	logger := log.With().Str("document_id", ref.ID).Logger()

	text, err := parser.ExtractFromReader(ref.DisplayName, bytes.NewReader(data))
	if err != nil {
		logger.Warn().Err(err).Msg("Text extraction failed, storing document without chunks")
		return nil
	}

	var chunks []models.Chunk
	for seg := range parser.Chunks(text, s.chunkSize) {
		chunks = append(chunks, models.Chunk{
			OwnerID:      ref.CaseID,
			DocumentID:   ref.ID,
			DocumentName: ref.DisplayName,
			Index:        seg.Index,
			Content:      seg.Content,
		})
	}

	if s.embedder != nil && len(chunks) > 0 {
		if err := embedding.EmbedChunks(ctx, s.embedder, chunks); err != nil {
			logger.Error().Err(err).Msg("Embedding failed, storing chunks without embeddings")
			for i := range chunks {
				chunks[i].Embedding = nil
			}
		}
	}
	return chunks
}

// Delete removes a document, its chunks and its raw file.
func (s *Service) Delete(ctx context.Context, id string) (models.DocumentRef, error) {
	ref, err := s.docs.DeleteDocument(ctx, id)
	if err != nil {
		return models.DocumentRef{}, err
	}
	if ref.RawTextPath != "" {
		if err := s.files.Remove(ctx, ref.RawTextPath); err != nil {
			log.Warn().Err(err).Str("document_id", id).Msg("Failed to remove raw file")
		}
	}
	return ref, nil
}
