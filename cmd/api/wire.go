package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/agricare/backend/internal/analysis/emotion"
	"github.com/agricare/backend/internal/config"
	"github.com/agricare/backend/internal/model/farmer"
	"github.com/agricare/backend/internal/service/ai"
	"github.com/agricare/backend/internal/service/chat"
	emotionservice "github.com/agricare/backend/internal/service/emotion"
	"github.com/agricare/backend/internal/service/escalation"
	"github.com/agricare/backend/internal/service/translate"
	"github.com/agricare/backend/internal/service/turn"
)

// application holds the services shared by every command.
type application struct {
	cfg     *config.Config
	logger  zerolog.Logger
	farmers *farmer.MemoryStore
	turns   *turn.Service
}

func setupLogging(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	log.Logger = logger
	return logger
}

func buildApplication(ctx context.Context, configPath string) (*application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger := setupLogging(cfg.Log)

	var chatModel model.ChatModel
	if cfg.Ark.Enabled() {
		chatModel, err = cfg.Ark.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("create ark chat model: %w", err)
		}
	}

	classifier, err := buildClassifier(ctx, cfg, chatModel)
	if err != nil {
		return nil, err
	}

	stages, err := buildStages(ctx, cfg, chatModel)
	if err != nil {
		return nil, err
	}
	orchOpts := ai.Options{HistoryTurns: cfg.Conversation.HistoryTurns}
	if cfg.Backends.Replies != "" {
		if orchOpts.Bank, err = ai.LoadTemplateBank(cfg.Backends.Replies); err != nil {
			return nil, err
		}
	}

	var transport escalation.Transport = escalation.Disabled{}
	if cfg.Escalation.Enabled() {
		transport, err = escalation.NewCallMeBot(escalation.CallMeBotConfig{
			BaseURL:  cfg.Escalation.URL,
			APIKey:   cfg.Escalation.APIKey,
			Phone:    cfg.Escalation.Phone,
			Timeout:  cfg.Escalation.Timeout,
			Interval: cfg.Escalation.Interval,
		})
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn().Msg("CallMeBot not configured, emergency alerts will not be delivered")
	}

	farmers := farmer.NewMemoryStore(farmer.Seed())
	turns, err := turn.NewService(turn.Deps{
		Sessions: chat.NewService(chat.Config{
			DedupeWindow:    cfg.Conversation.DedupeWindow,
			DefaultLanguage: cfg.Conversation.DefaultLanguage,
		}),
		Farmers:    farmers,
		Classifier: classifier,
		Generator:  ai.NewOrchestrator(stages, orchOpts),
		Escalator:  escalation.NewEscalator(transport),
	})
	if err != nil {
		return nil, err
	}

	return &application{cfg: cfg, logger: logger, farmers: farmers, turns: turns}, nil
}

func buildClassifier(ctx context.Context, cfg *config.Config, chatModel model.ChatModel) (*emotion.Classifier, error) {
	lexicon := emotion.DefaultLexicon()
	if cfg.Classifier.LexiconPath != "" {
		var err error
		if lexicon, err = emotion.LoadLexicon(cfg.Classifier.LexiconPath); err != nil {
			return nil, err
		}
	}

	opts := emotion.Options{
		Lexicon:         lexicon,
		WorkingLanguage: cfg.Classifier.WorkingLanguage,
		Threshold:       cfg.Classifier.Threshold,
	}
	if cfg.Classifier.ModelEnabled && chatModel != nil {
		scorer, err := emotionservice.NewScorer(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		opts.Model = scorer
		log.Info().Msg("emotion score model enabled")
	}
	if cfg.Translator.Enabled && chatModel != nil {
		translator, err := translate.NewChainTranslator(ctx, chatModel, cfg.Translator.Timeout)
		if err != nil {
			return nil, err
		}
		opts.Translator = translator
	} else {
		opts.Translator = translate.Noop{}
	}
	return emotion.NewClassifier(opts), nil
}

// buildStages assembles primary, local and secondary in that order. A stage
// that is not configured is kept with a nil backend so it shows up as
// unavailable in attempts.
func buildStages(ctx context.Context, cfg *config.Config, chatModel model.ChatModel) ([]ai.Stage, error) {
	primary := ai.Stage{Name: "primary", Timeout: cfg.Backends.Primary.Timeout}
	if pc := cfg.Backends.Primary; pc.Enabled() {
		switch pc.Provider {
		case config.ProviderArk:
			backend, err := ai.NewArkBackend(ctx, "ark", chatModel)
			if err != nil {
				return nil, err
			}
			primary.Backend = backend
		default:
			llm, err := ai.NewCohereModel(pc.APIKey, pc.Model, pc.URL)
			if err != nil {
				return nil, fmt.Errorf("create cohere client: %w", err)
			}
			primary.Backend = ai.NewLangChainBackend("cohere", llm, false)
		}
	}

	local := ai.Stage{Name: "local", Timeout: cfg.Backends.Local.Timeout}
	if lc := cfg.Backends.Local; lc.Enabled() {
		llm, err := ai.NewOllamaModel(lc.URL, lc.Model)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		local.Backend = ai.NewLangChainBackend("ollama", llm, false)
	}

	secondary := ai.Stage{Name: "secondary", Mode: ai.ModeGenerative, Timeout: cfg.Backends.Secondary.Timeout}
	if sc := cfg.Backends.Secondary; sc.Enabled() {
		llm, err := ai.NewHuggingFaceModel(sc.APIKey, sc.Model, sc.URL)
		if err != nil {
			return nil, fmt.Errorf("create huggingface client: %w", err)
		}
		secondary.Backend = ai.NewLangChainBackend("huggingface", llm, true)
	}

	stages := []ai.Stage{primary, local, secondary}
	for _, st := range stages {
		backend := "none"
		if st.Backend != nil {
			backend = st.Backend.Name()
		}
		log.Info().Str("stage", st.Name).Str("backend", backend).Dur("timeout", st.Timeout).Msg("reply stage configured")
	}
	return stages, nil
}
