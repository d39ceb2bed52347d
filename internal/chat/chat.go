package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"case-rag/internal/embedding"
	"case-rag/internal/llmservice"
	"case-rag/internal/models"
	"case-rag/internal/rag"
)

// Retriever assembles prompt context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, req rag.Request) rag.Result
}

type AskRequest struct {
	Scope    models.Scope
	OwnerID  string
	Question string
	History  []models.ChatMessage
}

// Service answers questions grounded in a case's or a document's chunks.
type Service struct {
	retriever Retriever
	embedder  embeddings.Embedder
	model     llms.Model
}

// NewService wires the chat pipeline. A nil embedder disables semantic ranking.
func NewService(retriever Retriever, embedder embeddings.Embedder, model llms.Model) *Service {
	return &Service{retriever: retriever, embedder: embedder, model: model}
}

// Ask runs embed, retrieve and complete. Only invalid requests return an
// error; retrieval and model failures produce a fallback message.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*models.PromptResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" || req.OwnerID == "" {
		return nil, fmt.Errorf("%w: question and owner are required", models.ErrInvalidInput)
	}
	if _, err := models.ParseScope(string(req.Scope)); err != nil {
		return nil, err
	}
	logger := log.With().Str("scope", string(req.Scope)).Str("owner_id", req.OwnerID).Logger()

	var queryEmbedding models.Vector
	if s.embedder != nil {
		v, err := embedding.EmbedQuery(ctx, s.embedder, question)
		if err != nil {
			logger.Warn().Err(err).Msg("Query embedding failed, using name match only")
		} else {
			queryEmbedding = v
		}
	}

	result := s.retriever.Retrieve(ctx, rag.Request{
		Scope:          req.Scope,
		OwnerID:        req.OwnerID,
		Question:       question,
		QueryEmbedding: queryEmbedding,
	})

	resp := &models.PromptResponse{Query: question, Sources: result.UsedLabels}
	if !result.Found {
		logger.Info().Msg("No context found for question")
		resp.Content = models.NoContextMessage
		resp.NoContext = true
		return resp, nil
	}

	system := models.CaseSystemPrompt
	if req.Scope == models.ScopeDocument {
		system = models.DocumentSystemPrompt
	}
	messages := llmservice.BuildMessages(system, req.History, fmt.Sprintf(models.QuestionPromptTemplate, result.ContextBlock, question))

	answer, err := llmservice.Complete(ctx, s.model, messages)
	if err != nil {
		logger.Error().Err(err).Msg("Completion failed")
		resp.Content = models.RetryLaterMessage
		resp.LLMFailure = true
		return resp, nil
	}

	logger.Debug().Strs("sources", result.UsedLabels).Msg("Answered question")
	resp.Content = answer
	return resp, nil
}
