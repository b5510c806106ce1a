package ai

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agricare/backend/internal/analysis/emotion"
	"github.com/agricare/backend/internal/model/chat"
	"github.com/agricare/backend/internal/model/farmer"
)

type fakeBackend struct {
	name  string
	reply func(ctx context.Context, p Prompt, params Params) (string, error)

	mu      sync.Mutex
	calls   int
	prompts []Prompt
	params  []Params
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Complete(ctx context.Context, p Prompt, params Params) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, p)
	f.params = append(f.params, params)
	f.mu.Unlock()
	return f.reply(ctx, p, params)
}

func replying(name, text string) *fakeBackend {
	return &fakeBackend{name: name, reply: func(context.Context, Prompt, Params) (string, error) { return text, nil }}
}

func failing(name string) *fakeBackend {
	return &fakeBackend{name: name, reply: func(context.Context, Prompt, Params) (string, error) {
		return "", errors.New("503 service unavailable")
	}}
}

func blocking(name string) *fakeBackend {
	return &fakeBackend{name: name, reply: func(ctx context.Context, _ Prompt, _ Params) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
}

func panicking(name string) *fakeBackend {
	return &fakeBackend{name: name, reply: func(context.Context, Prompt, Params) (string, error) {
		panic("nil pointer in client")
	}}
}

var testFarmer = &farmer.Context{ID: "ravi", Name: "Ravi"}

func history(pairs ...string) []chat.Message {
	out := make([]chat.Message, 0, len(pairs)/2)
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, chat.Message{UserText: pairs[i], BotText: pairs[i+1], Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	return out
}

func newTestOrchestrator(stages ...Stage) *Orchestrator {
	return NewOrchestrator(stages, Options{HistoryTurns: 3, Rand: rand.New(rand.NewSource(7))})
}

func TestGenerateFirstSuccessWins(t *testing.T) {
	primary := replying("cohere", "The monsoon should help your paddy. I'm here for you.")
	local := replying("ollama", "should not be used")
	o := newTestOrchestrator(
		Stage{Name: "primary", Backend: primary},
		Stage{Name: "local", Backend: local},
	)

	reply := o.Generate(context.Background(), Request{UserText: "worried about rain", Emotion: emotion.Sad, Farmer: testFarmer})

	assert.Equal(t, "primary", reply.Stage)
	assert.Equal(t, "cohere", reply.Backend)
	assert.False(t, reply.Fallback)
	assert.Equal(t, 0, local.calls)
	assert.Equal(t, "The monsoon should help your paddy. I'm here for you.", reply.Text)
}

func TestGenerateAdvancesPastFailures(t *testing.T) {
	o := newTestOrchestrator(
		Stage{Name: "primary", Backend: failing("cohere")},
		Stage{Name: "local", Backend: replying("ollama", "   ")},
		Stage{Name: "secondary", Backend: replying("huggingface", "Glad the harvest went well"), Mode: ModeGenerative},
	)

	reply := o.Generate(context.Background(), Request{UserText: "harvest was great", Emotion: emotion.Happy, Farmer: testFarmer})

	assert.Equal(t, "secondary", reply.Stage)
	require.Len(t, reply.Attempts, 3)
	assert.Equal(t, FailureError, reply.Attempts[0].Failure)
	assert.Equal(t, FailureEmpty, reply.Attempts[1].Failure)
	assert.True(t, reply.Attempts[2].Success)
	assert.Equal(t, "Glad the harvest went well It's wonderful to see you feeling positive!", reply.Text)
}

func TestGenerateTimeoutAbortsOnlyThatStage(t *testing.T) {
	slow := blocking("cohere")
	o := newTestOrchestrator(
		Stage{Name: "primary", Backend: slow, Timeout: 20 * time.Millisecond},
		Stage{Name: "local", Backend: replying("ollama", "Take a deep breath, Ravi.")},
	)

	start := time.Now()
	reply := o.Generate(context.Background(), Request{UserText: "so angry", Emotion: emotion.Angry, Farmer: testFarmer})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "local", reply.Stage)
	assert.Equal(t, FailureTimeout, reply.Attempts[0].Failure)
	assert.Equal(t, "Take a deep breath, Ravi.", reply.Text)
}

func TestGenerateRecoversBackendPanic(t *testing.T) {
	o := newTestOrchestrator(
		Stage{Name: "primary", Backend: panicking("cohere")},
		Stage{Name: "local", Backend: replying("ollama", "Help is available, please reach out.")},
	)

	reply := o.Generate(context.Background(), Request{UserText: "x", Emotion: emotion.HighRisk, Farmer: testFarmer})

	assert.Equal(t, "local", reply.Stage)
	assert.Equal(t, FailureError, reply.Attempts[0].Failure)
}

func TestGenerateAllBackendsFailUsesTemplate(t *testing.T) {
	o := newTestOrchestrator(
		Stage{Name: "primary", Backend: failing("cohere")},
		Stage{Name: "local"},
		Stage{Name: "secondary", Backend: blocking("huggingface"), Mode: ModeGenerative, Timeout: 10 * time.Millisecond},
	)

	for _, label := range emotion.Labels {
		reply := o.Generate(context.Background(), Request{UserText: "hello", Emotion: label, Farmer: testFarmer})

		assert.True(t, reply.Fallback, label)
		assert.Equal(t, TemplateStage, reply.Stage)
		assert.NotEmpty(t, strings.TrimSpace(reply.Text))
		assert.Contains(t, reply.Text, "Ravi")
		assert.True(t, HasClosing(label, reply.Text), label)
		require.Len(t, reply.Attempts, 4)
		assert.Equal(t, FailureUnavailable, reply.Attempts[1].Failure)
		assert.Equal(t, FailureTimeout, reply.Attempts[2].Failure)
	}
}

func TestGenerateWithoutStagesOrFarmer(t *testing.T) {
	o := newTestOrchestrator()

	reply := o.Generate(context.Background(), Request{UserText: "", Emotion: ""})

	assert.True(t, reply.Fallback)
	assert.Contains(t, reply.Text, "friend")
	assert.True(t, HasClosing(emotion.Sad, reply.Text))
}

func TestTemplateRotationDoesNotRepeat(t *testing.T) {
	o := newTestOrchestrator()
	bankSize := o.bank.Size(emotion.Sad)
	require.GreaterOrEqual(t, bankSize, 2)

	seen := make(map[string]bool)
	prev := ""
	for turn := 0; turn < bankSize; turn++ {
		reply := o.Generate(context.Background(), Request{UserText: "tired", Emotion: emotion.Sad, Farmer: testFarmer, Turn: turn})
		assert.NotEqual(t, prev, reply.Text)
		assert.False(t, seen[reply.Text], "phrase repeated before bank was exhausted")
		seen[reply.Text] = true
		prev = reply.Text
	}
}

func TestTemplateUsesLastTopic(t *testing.T) {
	o := newTestOrchestrator()
	h := history("The weather is worrying me", "I hear you.")

	reply := o.Generate(context.Background(), Request{UserText: "still bad", Emotion: emotion.Sad, Farmer: testFarmer, History: h, Turn: 1})

	assert.Contains(t, reply.Text, "the weather")
}

func TestChatPromptCarriesContext(t *testing.T) {
	primary := replying("cohere", "ok, I'm here for you")
	o := newTestOrchestrator(Stage{Name: "primary", Backend: primary})
	h := history("one", "r1", "two", "r2", "three", "r3", "four", "r4")

	o.Generate(context.Background(), Request{UserText: "five", Emotion: emotion.Sad, Farmer: testFarmer, History: h, Language: "Tamil"})

	require.Len(t, primary.prompts, 1)
	p := primary.prompts[0]
	assert.Contains(t, p.System, "farmer Ravi")
	assert.Contains(t, p.System, "Detected emotion: sad")
	assert.Contains(t, p.System, "Reply language: Tamil")
	assert.Equal(t, []Exchange{{User: "two", Assistant: "r2"}, {User: "three", Assistant: "r3"}, {User: "four", Assistant: "r4"}}, p.History)
	assert.Equal(t, "five", p.Query)
}

func TestGenerativePromptIsReproducibleWithSeed(t *testing.T) {
	h := history("a", "1", "b", "2", "c", "3")
	req := Request{UserText: "d", Emotion: emotion.Angry, Farmer: testFarmer, History: h}

	run := func() (Prompt, Params) {
		backend := replying("huggingface", "Let's breathe together.")
		o := NewOrchestrator([]Stage{{Name: "secondary", Backend: backend, Mode: ModeGenerative}},
			Options{HistoryTurns: 3, Rand: rand.New(rand.NewSource(42))})
		o.Generate(context.Background(), req)
		return backend.prompts[0], backend.params[0]
	}

	p1, params1 := run()
	p2, params2 := run()
	assert.Equal(t, p1, p2)
	assert.Equal(t, params1, params2)
	assert.Contains(t, temperatureChoices, params1.Temperature)
	assert.GreaterOrEqual(t, len(p1.History), 1)
	assert.LessOrEqual(t, len(p1.History), 3)
	assert.Contains(t, p1.System, "Ravi")
}

func TestGenerativeOutputIsCleaned(t *testing.T) {
	var echoed *fakeBackend
	echoed = &fakeBackend{name: "huggingface", reply: func(_ context.Context, p Prompt, _ Params) (string, error) {
		return p.Text() + " The rains will come, Ravi.\nUser: thanks\nAI: anytime", nil
	}}
	o := newTestOrchestrator(Stage{Name: "secondary", Backend: echoed, Mode: ModeGenerative})

	reply := o.Generate(context.Background(), Request{UserText: "will it rain", Emotion: emotion.Sad, Farmer: testFarmer})

	assert.Equal(t, "secondary", reply.Stage)
	assert.Equal(t, "The rains will come, Ravi. I'm here for you whenever you need to talk.", reply.Text)
}

func TestGenerativePromptOnlyOutputFails(t *testing.T) {
	promptOnly := &fakeBackend{name: "huggingface", reply: func(_ context.Context, p Prompt, _ Params) (string, error) {
		return p.Text(), nil
	}}
	o := newTestOrchestrator(Stage{Name: "secondary", Backend: promptOnly, Mode: ModeGenerative})

	reply := o.Generate(context.Background(), Request{UserText: "hi", Emotion: emotion.Happy, Farmer: testFarmer})

	assert.True(t, reply.Fallback)
	assert.Equal(t, FailureEmpty, reply.Attempts[0].Failure)
}

func TestCleanCompletionDropsPersonaLines(t *testing.T) {
	p := Prompt{System: "You are AgriCare AI, a calm friend of farmer Ravi.", Query: "hi"}
	raw := "You are AgriCare AI, a calm friend of farmer Ravi.\n[Context: sad emotion]\nHello Ravi!\nUser: more"

	assert.Equal(t, "Hello Ravi!", CleanCompletion(raw, p))
	assert.Equal(t, "", CleanCompletion("User: hi", p))
}

func TestEnsureClosing(t *testing.T) {
	assert.Equal(t, "Call me anytime. I'm here for you whenever you need to talk.", EnsureClosing(emotion.Sad, "Call me anytime."))
	assert.Equal(t, "I am Here For You.", EnsureClosing(emotion.Sad, "I am Here For You."))
	assert.Contains(t, EnsureClosing(emotion.HighRisk, "Stay with me."), "helpline")
	assert.Contains(t, EnsureClosing(emotion.Angry, "Okay."), "deep breath")
}

func TestDefaultBankSatisfiesClosings(t *testing.T) {
	bank := DefaultTemplateBank()
	for _, label := range emotion.Labels {
		for turn := 0; turn < bank.Size(label); turn++ {
			text := bank.Reply(label, "Ravi", defaultTopic, turn)
			assert.True(t, HasClosing(label, text), "%s phrase %d lacks closing", label, turn)
			assert.NotContains(t, text, "{")
		}
	}
}

func TestParseTemplateBankRequiresEveryLabel(t *testing.T) {
	_, err := ParseTemplateBank([]byte("happy: [\"hi\"]\n"))
	assert.Error(t, err)

	_, err = ParseTemplateBank([]byte("joyful: [\"hi\"]\n"))
	assert.Error(t, err)
}

func TestLastTopic(t *testing.T) {
	assert.Equal(t, "your crops", LastTopic(history("my crop failed", "sorry")))
	assert.Equal(t, "your family", LastTopic(history("crop", "a", "my family is away", "b")))
	assert.Equal(t, defaultTopic, LastTopic(history("crop", "a", "hello", "b")))
	assert.Equal(t, defaultTopic, LastTopic(nil))
}
