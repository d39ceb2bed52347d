package llmservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"case-rag/internal/config"
	"case-rag/internal/models"
)

type fakeModel struct {
	content string
	err     error
	got     []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestComplete_StripsThinkBlock(t *testing.T) {
	m := &fakeModel{content: "<think>internal\nnotes</think>\nThe rent is $1,200."}
	got, err := Complete(context.Background(), m, BuildMessages("sys", nil, "rent?"))
	require.NoError(t, err)
	assert.Equal(t, "The rent is $1,200.", got)
}

func TestComplete_Error(t *testing.T) {
	_, err := Complete(context.Background(), &fakeModel{err: errors.New("503")}, nil)
	assert.Error(t, err)
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("sys", []models.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "  "},
	}, "question")

	require.Len(t, msgs, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[3].Role)
	assert.Equal(t, llms.TextContent{Text: "question"}, msgs[3].Parts[0])
}

func TestNewModel_UnknownProvider(t *testing.T) {
	_, err := NewModel(&config.LLMConfig{Provider: "palm"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
