package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single translation call.
const DefaultTimeout = 8 * time.Second

// Noop returns text unchanged.
type Noop struct{}

// Translate implements emotion.Translator.
func (Noop) Translate(_ context.Context, text, _ string) string { return text }

// ChainTranslator asks a chat model for a plain translation. Any failure yields
// the source text.
type ChainTranslator struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
}

// NewChainTranslator compiles the translation chain around chatModel.
func NewChainTranslator(ctx context.Context, chatModel model.BaseChatModel, timeout time.Duration) (*ChainTranslator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("Translate the user's message into {target}. Reply with the translation only, without quotes or notes."),
		schema.UserMessage("{text}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile translation chain: %w", err)
	}
	return &ChainTranslator{chain: runnable, timeout: timeout}, nil
}

// Translate implements emotion.Translator.
func (t *ChainTranslator) Translate(ctx context.Context, text, target string) string {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(target) == "" {
		return text
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	msg, err := t.chain.Invoke(callCtx, map[string]any{
		"target": target,
		"text":   text,
	})
	if err != nil {
		log.Warn().Err(err).Str("target", target).Msg("translation failed, using source text")
		return text
	}
	if msg == nil {
		return text
	}

	translated := strings.Trim(strings.TrimSpace(msg.Content), "\"")
	if translated == "" {
		return text
	}
	return translated
}
