package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sandevgo/linguabot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"LINGUABOT_RUNTIME_PATH" envDefault:".linguabot"`

	// LLM backend
	Provider string `env:"LLM_PROVIDER" envDefault:"gemini"`
	Model    string `env:"LLM_MODEL" envDefault:"gemini-2.0-flash-lite"`

	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	OllamaBaseURL    string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaAPIKey     string `env:"OLLAMA_API_KEY"`
	CustomBaseURL    string `env:"CUSTOM_OPENAI_BASE_URL"`
	CustomAPIKey     string `env:"CUSTOM_OPENAI_API_KEY"`

	// Session memory
	StorageBackend  string        `env:"STORAGE_BACKEND" envDefault:"file"`
	DefaultLanguage string        `env:"DEFAULT_LANGUAGE" envDefault:"English"`
	SessionCacheMax int           `env:"SESSION_CACHE_MAX" envDefault:"256"`
	SessionCacheTTL time.Duration `env:"SESSION_CACHE_TTL" envDefault:"1h"`

	// HTTP API
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8001"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetMemoryPath() string {
	return filepath.Join(c.RuntimePath, "chat_memory.json")
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "linguabot.db")
}
