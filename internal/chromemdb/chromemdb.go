package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"case-rag/internal/models"
)

const (
	compress           = false
	documentCollection = "case_documents"
	chunkCollection    = "document_chunks"
	backupFile         = "case-rag.chromem"

	metaCaseID      = "case_id"
	metaDocumentID  = "document_id"
	metaDisplayName = "display_name"
	metaRawPath     = "raw_text_path"
	metaContentType = "content_type"
	metaChunkCount  = "chunk_count"
	metaUploadedAt  = "uploaded_at"
	metaChunkIndex  = "chunk_index"
	metaEmbedded    = "embedded"
)

// manifestVector is stored on every manifest entry so metadata-filtered
// queries can list documents without a real query embedding.
var manifestVector = []float32{1}

var errNoEmbedding = errors.New("chromemdb: embeddings must be supplied by the caller")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// VectorDBManager keeps documents and chunks in an embedded chromem database.
// Chunk IDs are "{documentID}:{index}" so reads are direct lookups.
type VectorDBManager struct {
	db            *chromem.DB
	documents     *chromem.Collection
	chunks        *chromem.Collection
	dbPath        string
	encryptionKey string
	filePath      string
}

// NewVectorDBManager opens (or creates) the database and both collections.
func NewVectorDBManager(dbPath string, inMemory bool, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		dbPath:        dbPath,
		encryptionKey: encryptionKey,
		filePath:      filepath.Join(dbPath, backupFile),
	}
	if err := m.openCollections(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *VectorDBManager) openCollections() error {
	docs, err := m.db.GetOrCreateCollection(documentCollection, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("failed to create/get collection %s: %w", documentCollection, err)
	}
	chunks, err := m.db.GetOrCreateCollection(chunkCollection, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("failed to create/get collection %s: %w", chunkCollection, err)
	}
	m.documents, m.chunks = docs, chunks
	return nil
}

func chunkID(documentID string, index int) string {
	return documentID + ":" + strconv.Itoa(index)
}

func (m *VectorDBManager) SaveDocument(ctx context.Context, ref models.DocumentRef, chunks []models.Chunk) error {
	if len(chunks) > 0 {
		docs := make([]chromem.Document, len(chunks))
		for i, c := range chunks {
			embedding := []float32(c.Embedding)
			embedded := "true"
			if len(embedding) == 0 {
				embedding = manifestVector
				embedded = "false"
			}
			docs[i] = chromem.Document{
				ID:      chunkID(ref.ID, c.Index),
				Content: c.Content,
				Metadata: map[string]string{
					metaDocumentID: ref.ID,
					metaCaseID:     ref.CaseID,
					metaChunkIndex: strconv.Itoa(c.Index),
					metaEmbedded:   embedded,
				},
				Embedding: embedding,
			}
		}
		if err := m.chunks.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to add chunks: %w", err)
		}
	}

	uploaded := ref.UploadedAt
	if uploaded.IsZero() {
		uploaded = time.Now()
	}
	err := m.documents.AddDocument(ctx, chromem.Document{
		ID:      ref.ID,
		Content: ref.DisplayName,
		Metadata: map[string]string{
			metaCaseID:      ref.CaseID,
			metaDisplayName: ref.DisplayName,
			metaRawPath:     ref.RawTextPath,
			metaContentType: ref.ContentType,
			metaChunkCount:  strconv.Itoa(len(chunks)),
			metaUploadedAt:  uploaded.UTC().Format(time.RFC3339Nano),
		},
		Embedding: manifestVector,
	})
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

func (m *VectorDBManager) GetDocument(ctx context.Context, id string) (models.DocumentRef, error) {
	doc, err := m.documents.GetByID(ctx, id)
	if err != nil {
		return models.DocumentRef{}, fmt.Errorf("document %s: %w (%v)", id, models.ErrNotFound, err)
	}
	return toRef(doc.ID, doc.Metadata), nil
}

func (m *VectorDBManager) ListDocuments(ctx context.Context, scope models.Scope, ownerID string, limit int) ([]models.DocumentRef, error) {
	if scope == models.ScopeDocument {
		ref, err := m.GetDocument(ctx, ownerID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []models.DocumentRef{ref}, nil
	}

	n := m.documents.Count()
	if n == 0 {
		return nil, nil
	}
	results, err := m.documents.QueryEmbedding(ctx, manifestVector, n, map[string]string{metaCaseID: ownerID}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents for case %s: %w", ownerID, err)
	}

	refs := make([]models.DocumentRef, len(results))
	for i, r := range results {
		refs[i] = toRef(r.ID, r.Metadata)
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].UploadedAt.After(refs[j].UploadedAt) })
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

func (m *VectorDBManager) FetchChunks(ctx context.Context, scope models.Scope, ownerID string, limit int) ([]models.Chunk, error) {
	docs, err := m.ListDocuments(ctx, scope, ownerID, 0)
	if err != nil {
		return nil, err
	}

	var out []models.Chunk
	for _, doc := range docs {
		if len(out) >= limit {
			break
		}
		chunks, err := m.readChunks(ctx, doc, min(doc.ChunkCount, limit-len(out)))
		if err != nil {
			return nil, err
		}
		out = append(out, chunks...)
	}
	return out, nil
}

func (m *VectorDBManager) FetchLeadingChunks(ctx context.Context, documentID string, n int) ([]models.Chunk, error) {
	doc, err := m.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return m.readChunks(ctx, doc, min(doc.ChunkCount, n))
}

func (m *VectorDBManager) readChunks(ctx context.Context, doc models.DocumentRef, n int) ([]models.Chunk, error) {
	out := make([]models.Chunk, 0, n)
	for i := 0; i < n; i++ {
		d, err := m.chunks.GetByID(ctx, chunkID(doc.ID, i))
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %d of %s: %w", i, doc.ID, err)
		}
		c := models.Chunk{
			OwnerID:      doc.CaseID,
			DocumentID:   doc.ID,
			DocumentName: doc.DisplayName,
			Index:        i,
			Content:      d.Content,
		}
		if d.Metadata[metaEmbedded] == "true" {
			c.Embedding = models.Vector(d.Embedding)
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *VectorDBManager) DeleteDocument(ctx context.Context, id string) (models.DocumentRef, error) {
	ref, err := m.GetDocument(ctx, id)
	if err != nil {
		return models.DocumentRef{}, err
	}

	if ref.ChunkCount > 0 {
		ids := make([]string, ref.ChunkCount)
		for i := range ids {
			ids[i] = chunkID(id, i)
		}
		if err := m.chunks.Delete(ctx, nil, nil, ids...); err != nil {
			return models.DocumentRef{}, fmt.Errorf("failed to delete chunks: %w", err)
		}
	}
	if err := m.documents.Delete(ctx, nil, nil, id); err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to delete document: %w", err)
	}
	return ref, nil
}

// Close is a no-op; chromem persists on every write.
func (m *VectorDBManager) Close() error {
	return nil
}

// Export writes both collections to an encrypted backup file.
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}

	log.Debug().Str("file", m.filePath).Bool("compress", compress).Msg("Exporting chromem database")
	if err := m.db.ExportToFile(m.filePath, compress, m.encryptionKey, documentCollection, chunkCollection); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import restores both collections from the backup file written by Export.
func (m *VectorDBManager) Import(ctx context.Context) error {
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, documentCollection, chunkCollection); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return m.openCollections()
}

func toRef(id string, meta map[string]string) models.DocumentRef {
	count, _ := strconv.Atoi(meta[metaChunkCount])
	uploaded, _ := time.Parse(time.RFC3339Nano, meta[metaUploadedAt])
	return models.DocumentRef{
		ID:          id,
		CaseID:      meta[metaCaseID],
		DisplayName: meta[metaDisplayName],
		RawTextPath: meta[metaRawPath],
		ContentType: meta[metaContentType],
		ChunkCount:  count,
		UploadedAt:  uploaded,
	}
}
