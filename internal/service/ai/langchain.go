package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/tmc/langchaingo/llms/huggingface"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// LangChainBackend adapts a langchaingo model to TextBackend.
type LangChainBackend struct {
	name       string
	llm        llms.Model
	completion bool
}

// NewLangChainBackend wraps llm. Completion backends receive the flattened prompt
// text instead of chat messages.
func NewLangChainBackend(name string, llm llms.Model, completion bool) *LangChainBackend {
	return &LangChainBackend{name: name, llm: llm, completion: completion}
}

// Name implements TextBackend.
func (b *LangChainBackend) Name() string { return b.name }

// Complete implements TextBackend.
func (b *LangChainBackend) Complete(ctx context.Context, p Prompt, params Params) (string, error) {
	var opts []llms.CallOption
	if params.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(params.Temperature))
	}
	if params.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxTokens))
	}

	if b.completion {
		return llms.GenerateFromSinglePrompt(ctx, b.llm, p.Text(), opts...)
	}

	messages := make([]llms.MessageContent, 0, len(p.History)*2+2)
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, systemWithContext(p)))
	for _, ex := range p.History {
		messages = append(messages,
			llms.TextParts(schema.ChatMessageTypeHuman, ex.User),
			llms.TextParts(schema.ChatMessageTypeAI, ex.Assistant),
		)
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, p.Query))

	resp, err := b.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

// NewCohereModel creates a Cohere chat model.
func NewCohereModel(apiKey, modelName, baseURL string) (llms.Model, error) {
	opts := []cohere.Option{
		cohere.WithToken(apiKey),
	}
	if modelName != "" {
		opts = append(opts, cohere.WithModel(modelName))
	}
	if baseURL != "" {
		opts = append(opts, cohere.WithBaseURL(baseURL))
	}

	llm, err := cohere.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cohere model: %w", err)
	}
	return llm, nil
}

// NewOllamaModel creates a model served by a local Ollama daemon.
func NewOllamaModel(serverURL, modelName string) (llms.Model, error) {
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}

	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama model: %w", err)
	}
	return llm, nil
}

// NewHuggingFaceModel creates a Hugging Face inference model.
func NewHuggingFaceModel(token, modelName, baseURL string) (llms.Model, error) {
	opts := []huggingface.Option{
		huggingface.WithToken(token),
	}
	if modelName != "" {
		opts = append(opts, huggingface.WithModel(modelName))
	}
	if baseURL != "" {
		opts = append(opts, huggingface.WithURL(baseURL))
	}

	llm, err := huggingface.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create huggingface model: %w", err)
	}
	return llm, nil
}
