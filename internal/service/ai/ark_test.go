package ai

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChatModel struct {
	input   []*schema.Message
	options *model.Options
}

func (r *recordingChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	r.input = input
	r.options = model.GetCommonOptions(nil, opts...)
	return schema.AssistantMessage("Namaste Ravi", nil), nil
}

func (r *recordingChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := r.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (r *recordingChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestArkBackendRendersChain(t *testing.T) {
	chatModel := &recordingChatModel{}
	backend, err := NewArkBackend(context.Background(), "ark", chatModel)
	require.NoError(t, err)

	text, err := backend.Complete(context.Background(), Prompt{
		System:  "You are AgriCare AI.",
		Context: "[Context: sad emotion]",
		History: []Exchange{{User: "rain?", Assistant: "soon"}},
		Query:   "when exactly",
	}, Params{Temperature: 0.8, MaxTokens: 150})
	require.NoError(t, err)

	assert.Equal(t, "Namaste Ravi", text)
	assert.Equal(t, "ark", backend.Name())
	require.Len(t, chatModel.input, 4)
	assert.Equal(t, schema.System, chatModel.input[0].Role)
	assert.Equal(t, "You are AgriCare AI.\n[Context: sad emotion]", chatModel.input[0].Content)
	assert.Equal(t, schema.User, chatModel.input[1].Role)
	assert.Equal(t, schema.Assistant, chatModel.input[2].Role)
	assert.Equal(t, "when exactly", chatModel.input[3].Content)
	require.NotNil(t, chatModel.options.MaxTokens)
	assert.Equal(t, 150, *chatModel.options.MaxTokens)
}

func TestNewArkBackendRequiresModel(t *testing.T) {
	_, err := NewArkBackend(context.Background(), "ark", nil)
	assert.Error(t, err)
}
