package db

import (
	"time"

	"github.com/uptrace/bun"

	"case-rag/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:case_documents,alias:d"`
	ID            string    `bun:"id,pk"`
	CaseID        string    `bun:"case_id,notnull"`
	DisplayName   string    `bun:"display_name,notnull"`
	RawTextPath   string    `bun:"raw_text_path"`
	ContentType   string    `bun:"content_type"`
	ChunkCount    int       `bun:"chunk_count,notnull,default:0"`
	UploadedAt    time.Time `bun:"uploaded_at,nullzero,notnull,default:current_timestamp"`
}

type Chunk struct {
	bun.BaseModel `bun:"table:document_chunks,alias:c"`
	ID            int64         `bun:"id,pk,autoincrement"`
	DocumentID    string        `bun:"document_id,notnull"`
	CaseID        string        `bun:"case_id,notnull"`
	ChunkIndex    int           `bun:"chunk_index,notnull"`
	Content       string        `bun:"content,notnull"`
	Embedding     models.Vector `bun:"embedding,type:vector"`
	Document      *Document     `bun:"rel:belongs-to,join:document_id=id"`
}

type Lead struct {
	bun.BaseModel `bun:"table:leads,alias:l"`
	ID            string    `bun:"id,pk"`
	FirmID        string    `bun:"firm_id,notnull"`
	Name          string    `bun:"name,notnull"`
	Email         string    `bun:"email"`
	Phone         string    `bun:"phone"`
	CaseType      string    `bun:"case_type"`
	Message       string    `bun:"message"`
	Source        string    `bun:"source"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// RateCounter is one fixed window of request counts for a key.
type RateCounter struct {
	bun.BaseModel `bun:"table:rate_counters,alias:rc"`
	Key           string    `bun:"key,pk"`
	WindowStart   time.Time `bun:"window_start,pk"`
	Count         int       `bun:"count,notnull"`
}

func (d *Document) toRef() models.DocumentRef {
	return models.DocumentRef{
		ID:          d.ID,
		CaseID:      d.CaseID,
		DisplayName: d.DisplayName,
		RawTextPath: d.RawTextPath,
		ContentType: d.ContentType,
		ChunkCount:  d.ChunkCount,
		UploadedAt:  d.UploadedAt,
	}
}

func fromRef(ref models.DocumentRef) *Document {
	return &Document{
		ID:          ref.ID,
		CaseID:      ref.CaseID,
		DisplayName: ref.DisplayName,
		RawTextPath: ref.RawTextPath,
		ContentType: ref.ContentType,
		ChunkCount:  ref.ChunkCount,
		UploadedAt:  ref.UploadedAt,
	}
}

func (c *Chunk) toModel() models.Chunk {
	m := models.Chunk{
		OwnerID:    c.CaseID,
		DocumentID: c.DocumentID,
		Index:      c.ChunkIndex,
		Content:    c.Content,
		Embedding:  c.Embedding,
	}
	if c.Document != nil {
		m.DocumentName = c.Document.DisplayName
	}
	return m
}
