package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"

	"case-rag/internal/chat"
	"case-rag/internal/chromemdb"
	"case-rag/internal/config"
	"case-rag/internal/db"
	"case-rag/internal/embedding"
	"case-rag/internal/filestore"
	"case-rag/internal/ingest"
	"case-rag/internal/llmservice"
	"case-rag/internal/models"
	"case-rag/internal/rag"
	"case-rag/internal/ratelimit"
)

// documentStore is what both store backends provide.
type documentStore interface {
	rag.ChunkStore
	ingest.DocumentWriter
	GetDocument(ctx context.Context, id string) (models.DocumentRef, error)
	Close() error
}

type app struct {
	cfg      *config.Config
	bunDB    *bun.DB
	pg       *db.Store
	chromem  *chromemdb.VectorDBManager
	docs     documentStore
	files    filestore.ObjectStore
	embedder embeddings.Embedder
}

// newApp opens the configured stores. Postgres is opened whenever a DSN is
// set since leads and shared rate counters live there even with chromem.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Database.DSN != "" {
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		a.bunDB = db.NewDB(sqldb, cfg.Database.Debug)
		a.pg = db.NewStore(a.bunDB)
	}

	switch cfg.Store.Backend {
	case "chromem":
		vdb, err := chromemdb.NewVectorDBManager(cfg.Store.ChromemPath, cfg.Store.InMemory, cfg.Store.EncryptionKey)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.chromem = vdb
		a.docs = vdb
	default:
		a.docs = a.pg
	}

	files, err := filestore.New(ctx, &cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.files = files

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Warn().Err(err).Msg("Embedder unavailable, retrieval falls back to name matching")
	} else {
		a.embedder = embedder
	}
	return a, nil
}

func (a *app) ingestService() *ingest.Service {
	return ingest.NewService(a.docs, a.files, a.embedder, a.cfg.RAG.ChunkSize)
}

func (a *app) chatService() (*chat.Service, error) {
	model, err := llmservice.NewModel(&a.cfg.ChatLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return chat.NewService(a.retriever(), a.embedder, model), nil
}

func (a *app) retriever() *rag.Retriever {
	return rag.NewRetriever(a.docs, a.files, a.cfg.RAG)
}

func (a *app) limiter() *ratelimit.Limiter {
	var store ratelimit.CounterStore = ratelimit.NewMemoryStore()
	if a.cfg.RateLimit.Backend == "postgres" {
		if a.pg != nil {
			store = a.pg
		} else {
			log.Warn().Msg("Postgres rate limit store requested without a database, using memory")
		}
	}
	return ratelimit.NewLimiter(store, a.cfg.RateLimit.Window, a.cfg.RateLimit.MaxRequests)
}

func (a *app) Close() {
	if a.bunDB != nil {
		if err := a.bunDB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
	if a.chromem != nil {
		_ = a.chromem.Close()
	}
}
