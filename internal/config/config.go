package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides. Double underscores separate
// levels: AGRICARE_BACKENDS__PRIMARY__API_KEY sets backends.primary.api_key.
const EnvPrefix = "AGRICARE_"

// DefaultPath is tried when no config file is given explicitly.
const DefaultPath = "./agricare.toml"

// Backend providers.
const (
	ProviderCohere      = "cohere"
	ProviderArk         = "ark"
	ProviderOllama      = "ollama"
	ProviderHuggingFace = "huggingface"
)

// Config aggregates every setting of the service.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Log          LogConfig          `koanf:"log"`
	Conversation ConversationConfig `koanf:"conversation"`
	Classifier   ClassifierConfig   `koanf:"classifier"`
	Translator   TranslatorConfig   `koanf:"translator"`
	Backends     BackendsConfig     `koanf:"backends"`
	Escalation   EscalationConfig   `koanf:"escalation"`
	Ark          ArkConfig          `koanf:"ark"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// AllowedOrigins is a comma separated CORS allow list; "*" allows any origin.
	AllowedOrigins string `koanf:"allowed_origins"`
}

// Origins splits AllowedOrigins.
func (c ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// ConversationConfig tunes session stores and prompt context.
type ConversationConfig struct {
	DedupeWindow    time.Duration `koanf:"dedupe_window"`
	HistoryTurns    int           `koanf:"history_turns"`
	DefaultLanguage string        `koanf:"default_language"`
}

// ClassifierConfig controls the emotion classifier.
type ClassifierConfig struct {
	LexiconPath string `koanf:"lexicon_path"`
	// ModelEnabled turns on the LLM score model. It needs the ark section.
	ModelEnabled    bool    `koanf:"model_enabled"`
	WorkingLanguage string  `koanf:"working_language"`
	Threshold       float64 `koanf:"threshold"`
}

type TranslatorConfig struct {
	Enabled bool          `koanf:"enabled"`
	Timeout time.Duration `koanf:"timeout"`
}

// BackendsConfig holds the three live stages of the reply chain.
type BackendsConfig struct {
	Primary   BackendConfig `koanf:"primary"`
	Local     BackendConfig `koanf:"local"`
	Secondary BackendConfig `koanf:"secondary"`
	Replies   string        `koanf:"replies_path"`
}

// BackendConfig configures one stage.
type BackendConfig struct {
	Provider string        `koanf:"provider"`
	APIKey   string        `koanf:"api_key"`
	Model    string        `koanf:"model"`
	URL      string        `koanf:"url"`
	Timeout  time.Duration `koanf:"timeout"`
	Disabled bool          `koanf:"disabled"`
}

// Enabled reports whether the stage has what its provider needs.
func (c BackendConfig) Enabled() bool {
	if c.Disabled {
		return false
	}
	switch c.Provider {
	case ProviderOllama:
		return c.Model != ""
	case ProviderArk:
		return true
	case ProviderCohere, ProviderHuggingFace:
		return c.APIKey != ""
	default:
		return false
	}
}

// EscalationConfig configures the CallMeBot WhatsApp transport.
type EscalationConfig struct {
	APIKey   string        `koanf:"api_key"`
	Phone    string        `koanf:"phone"`
	URL      string        `koanf:"url"`
	Timeout  time.Duration `koanf:"timeout"`
	Interval time.Duration `koanf:"interval"`
}

// Enabled reports whether alerts can be sent.
func (c EscalationConfig) Enabled() bool {
	return c.APIKey != ""
}

// ArkConfig describes the Volcengine Ark chat model shared by the ark backend,
// the score model and the translator.
type ArkConfig struct {
	APIKey      string   `koanf:"api_key"`
	AccessKey   string   `koanf:"access_key"`
	SecretKey   string   `koanf:"secret_key"`
	Model       string   `koanf:"model"`
	BaseURL     string   `koanf:"base_url"`
	Region      string   `koanf:"region"`
	Temperature *float64 `koanf:"temperature"`
	TopP        *float64 `koanf:"top_p"`
	MaxTokens   *int     `koanf:"max_tokens"`
}

// Enabled reports whether the required credentials are present.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates an Ark chat model from the configuration.
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ark.api_key and ark.model, or an access/secret key pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}

func defaults() map[string]any {
	return map[string]any{
		"server.addr":                   ":8080",
		"server.shutdown_timeout":       "5s",
		"server.allowed_origins":        "*",
		"log.level":                     "info",
		"log.pretty":                    false,
		"conversation.dedupe_window":    "5s",
		"conversation.history_turns":    3,
		"conversation.default_language": "English",
		"classifier.working_language":   "English",
		"classifier.threshold":          0.8,
		"translator.timeout":            "8s",
		"backends.primary.provider":     ProviderCohere,
		"backends.primary.model":        "command-r",
		"backends.primary.timeout":      "12s",
		"backends.local.provider":       ProviderOllama,
		"backends.local.url":            "http://localhost:11434",
		"backends.local.timeout":        "12s",
		"backends.secondary.provider":   ProviderHuggingFace,
		"backends.secondary.model":      "microsoft/DialoGPT-medium",
		"backends.secondary.timeout":    "12s",
		"escalation.timeout":            "10s",
		"escalation.interval":           "1s",
		"ark.base_url":                  "https://ark.cn-beijing.volces.com/api/v3",
		"ark.region":                    "cn-beijing",
	}
}

// envAliases maps well-known provider variables onto config keys. Prefixed
// variables still win.
var envAliases = map[string]string{
	"COHERE_API_KEY":        "backends.primary.api_key",
	"HUGGINGFACE_API_TOKEN": "backends.secondary.api_key",
	"OLLAMA_HOST":           "backends.local.url",
	"OLLAMA_MODEL":          "backends.local.model",
	"CALLMEBOT_API_KEY":     "escalation.api_key",
	"CALLMEBOT_PHONE":       "escalation.phone",
	"ARK_API_KEY":           "ark.api_key",
	"ARK_ACCESS_KEY":        "ark.access_key",
	"ARK_SECRET_KEY":        "ark.secret_key",
	"ARK_MODEL":             "ark.model",
	"PORT":                  "server.addr",
}

// Load reads defaults, then the TOML file at path (or DefaultPath when it
// exists), then well-known environment variables, then AGRICARE_ overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if _, err := os.Stat(DefaultPath); err == nil {
		if err := k.Load(file.Provider(DefaultPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", DefaultPath, err)
		}
	}

	aliases := make(map[string]any)
	for name, key := range envAliases {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			aliases[key] = v
		}
	}
	if err := k.Load(confmap.Provider(aliases, "."), nil); err != nil {
		return nil, fmt.Errorf("load environment aliases: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Addr)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// normalizeAddr accepts "8080", ":8080" or "host:8080".
func normalizeAddr(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return ":8080", nil
	}
	if strings.Contains(addr, " ") {
		return "", fmt.Errorf("invalid server address %q", raw)
	}
	if strings.Contains(addr, ":") {
		return addr, nil
	}
	return ":" + addr, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Classifier.Threshold <= 0 || c.Classifier.Threshold > 1 {
		return fmt.Errorf("classifier.threshold must be in (0, 1], got %v", c.Classifier.Threshold)
	}
	if c.Conversation.HistoryTurns < 1 {
		return fmt.Errorf("conversation.history_turns must be at least 1")
	}
	if c.Conversation.DedupeWindow < 0 {
		return fmt.Errorf("conversation.dedupe_window must not be negative")
	}

	stages := []struct {
		name    string
		cfg     BackendConfig
		allowed []string
	}{
		{"primary", c.Backends.Primary, []string{ProviderCohere, ProviderArk}},
		{"local", c.Backends.Local, []string{ProviderOllama}},
		{"secondary", c.Backends.Secondary, []string{ProviderHuggingFace}},
	}
	for _, st := range stages {
		if !contains(st.allowed, st.cfg.Provider) {
			return fmt.Errorf("backends.%s.provider %q not supported (want one of %s)", st.name, st.cfg.Provider, strings.Join(st.allowed, ", "))
		}
	}
	if c.Backends.Primary.Provider == ProviderArk && !c.Ark.Enabled() && !c.Backends.Primary.Disabled {
		return fmt.Errorf("backends.primary uses ark but the ark section is incomplete")
	}
	if c.Classifier.ModelEnabled && !c.Ark.Enabled() {
		return fmt.Errorf("classifier.model_enabled needs the ark section")
	}
	if c.Translator.Enabled && !c.Ark.Enabled() {
		return fmt.Errorf("translator.enabled needs the ark section")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
