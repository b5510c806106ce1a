package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ArkBackend runs chat prompts through an eino chain ending in a chat model.
type ArkBackend struct {
	name      string
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewArkBackend compiles the system/history/query chain around chatModel.
func NewArkBackend(ctx context.Context, name string, chatModel model.ChatModel) (*ArkBackend, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkBackend{name: name, chatModel: chatModel, chain: runnable}, nil
}

// Name implements TextBackend.
func (b *ArkBackend) Name() string { return b.name }

// ChatModel returns the underlying model so other services can share it.
func (b *ArkBackend) ChatModel() model.ChatModel { return b.chatModel }

// Complete implements TextBackend.
func (b *ArkBackend) Complete(ctx context.Context, p Prompt, params Params) (string, error) {
	var modelOpts []model.Option
	if params.Temperature > 0 {
		modelOpts = append(modelOpts, model.WithTemperature(float32(params.Temperature)))
	}
	if params.MaxTokens > 0 {
		modelOpts = append(modelOpts, model.WithMaxTokens(params.MaxTokens))
	}

	var opts []compose.Option
	if len(modelOpts) > 0 {
		opts = append(opts, compose.WithChatModelOption(modelOpts...))
	}

	msg, err := b.chain.Invoke(ctx, map[string]any{
		"system":  systemWithContext(p),
		"history": historyMessages(p.History),
		"query":   p.Query,
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

func historyMessages(history []Exchange) []*schema.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]*schema.Message, 0, len(history)*2)
	for _, ex := range history {
		out = append(out, schema.UserMessage(ex.User))
		out = append(out, schema.AssistantMessage(ex.Assistant, nil))
	}
	return out
}

func systemWithContext(p Prompt) string {
	if p.Context == "" {
		return p.System
	}
	return p.System + "\n" + p.Context
}
