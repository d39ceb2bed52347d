package models

import "time"

// Chunk is a bounded slice of a document's extracted text with its embedding.
// Index is zero-based and dense per document.
type Chunk struct {
	OwnerID      string
	DocumentID   string
	DocumentName string
	Index        int
	Content      string
	Embedding    Vector
}

// DocumentRef identifies an uploaded document for name matching and excerpt retrieval.
type DocumentRef struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"case_id"`
	DisplayName string    `json:"display_name"`
	RawTextPath string    `json:"raw_text_path,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	ChunkCount  int       `json:"chunk_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// ScoredContext is a request-scoped excerpt selected for the prompt.
type ScoredContext struct {
	Label   string  `json:"label"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type Lead struct {
	ID        string    `json:"id"`
	FirmID    string    `json:"firm_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CaseType  string    `json:"case_type,omitempty"`
	Message   string    `json:"message,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type PromptResponse struct {
	Query      string   `json:"query"`
	Content    string   `json:"content"`
	Sources    []string `json:"sources"`
	NoContext  bool     `json:"no_context"`
	LLMFailure bool     `json:"llm_failure"`
}
