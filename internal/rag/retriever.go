package rag

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"

	"case-rag/internal/config"
	"case-rag/internal/models"
)

// maxDownloadBytes bounds raw file downloads used for excerpts.
const maxDownloadBytes = 50 << 20

// ChunkStore reads persisted chunks and document listings.
type ChunkStore interface {
	// FetchChunks returns at most limit chunks for a case or a document.
	FetchChunks(ctx context.Context, scope models.Scope, ownerID string, limit int) ([]models.Chunk, error)
	// FetchLeadingChunks returns the first n chunks of a document ordered by index.
	FetchLeadingChunks(ctx context.Context, documentID string, n int) ([]models.Chunk, error)
	// ListDocuments returns documents in scope, most recent upload first.
	ListDocuments(ctx context.Context, scope models.Scope, ownerID string, limit int) ([]models.DocumentRef, error)
}

// FileSource downloads raw uploaded files.
type FileSource interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

type Request struct {
	Scope          models.Scope
	OwnerID        string
	Question       string
	QueryEmbedding models.Vector
}

type Result struct {
	ContextBlock string
	Found        bool
	Contexts     []models.ScoredContext
	UsedLabels   []string
}

// Retriever assembles prompt context for a question. It never fails: store
// and download errors shrink the result instead.
type Retriever struct {
	store    ChunkStore
	fallback *Fallback
	cfg      config.RAGConfig
}

func NewRetriever(store ChunkStore, files FileSource, cfg config.RAGConfig) *Retriever {
	return &Retriever{
		store:    store,
		fallback: NewFallback(store, files),
		cfg:      cfg,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, req Request) Result {
	params := r.cfg.ScopeParams(req.Scope)
	logger := log.With().Str("scope", string(req.Scope)).Str("owner_id", req.OwnerID).Logger()

	semantic := r.semantic(ctx, req, params)
	logger.Debug().Int("semantic", len(semantic)).Msg("Ranked chunks")

	var named []models.ScoredContext
	docs, err := r.store.ListDocuments(ctx, req.Scope, req.OwnerID, params.ListLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to list documents, skipping name match")
	} else {
		named = r.fallback.Contexts(ctx, req.Question, docs, params)
	}
	logger.Debug().Int("named", len(named)).Msg("Name-matched documents")

	merged := Merge(semantic, named)
	block, found := Render(merged)

	labels := make([]string, len(merged))
	for i, c := range merged {
		labels[i] = c.Label
	}
	return Result{
		ContextBlock: block,
		Found:        found,
		Contexts:     merged,
		UsedLabels:   labels,
	}
}

func (r *Retriever) semantic(ctx context.Context, req Request, params models.ScopeParams) []models.ScoredContext {
	if len(req.QueryEmbedding) == 0 {
		return nil
	}

	chunks, err := r.store.FetchChunks(ctx, req.Scope, req.OwnerID, params.RowLimit)
	if err != nil {
		log.Warn().Err(err).Str("owner_id", req.OwnerID).Msg("Chunk store unavailable, continuing without semantic results")
		return nil
	}
	if params.RowLimit > 0 && len(chunks) > params.RowLimit {
		chunks = chunks[:params.RowLimit]
	}

	ranker := Ranker{K: params.TopK, Policy: DimensionPolicy(r.cfg.DimensionPolicy)}
	return ranker.Rank(req.QueryEmbedding, chunks)
}
