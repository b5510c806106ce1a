package translate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	reply func(ctx context.Context, input []*schema.Message) (*schema.Message, error)
	last  []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.last = input
	return f.reply(ctx, input)
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func answer(content string) func(context.Context, []*schema.Message) (*schema.Message, error) {
	return func(context.Context, []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(content, nil), nil
	}
}

func TestChainTranslatorTranslates(t *testing.T) {
	fake := &fakeChatModel{reply: answer(` "My crops are dying" `)}
	tr, err := NewChainTranslator(context.Background(), fake, time.Second)
	require.NoError(t, err)

	got := tr.Translate(context.Background(), "मेरी फसल सूख रही है", "English")

	assert.Equal(t, "My crops are dying", got)
	require.Len(t, fake.last, 2)
	assert.Contains(t, fake.last[0].Content, "into English")
	assert.Equal(t, "मेरी फसल सूख रही है", fake.last[1].Content)
}

func TestChainTranslatorDegradesToSource(t *testing.T) {
	source := "என் பயிர்கள்"

	cases := map[string]func(context.Context, []*schema.Message) (*schema.Message, error){
		"error": func(context.Context, []*schema.Message) (*schema.Message, error) {
			return nil, errors.New("connection reset")
		},
		"empty": answer("   "),
		"timeout": func(ctx context.Context, _ []*schema.Message) (*schema.Message, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			tr, err := NewChainTranslator(context.Background(), &fakeChatModel{reply: reply}, 20*time.Millisecond)
			require.NoError(t, err)
			assert.Equal(t, source, tr.Translate(context.Background(), source, "English"))
		})
	}
}

func TestChainTranslatorSkipsBlankInput(t *testing.T) {
	fake := &fakeChatModel{reply: answer("should not be called")}
	tr, err := NewChainTranslator(context.Background(), fake, 0)
	require.NoError(t, err)

	assert.Equal(t, "  ", tr.Translate(context.Background(), "  ", "English"))
	assert.Nil(t, fake.last)
}

func TestNoop(t *testing.T) {
	assert.Equal(t, "वर्षा", Noop{}.Translate(context.Background(), "वर्षा", "English"))
}
