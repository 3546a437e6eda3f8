package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LLM providers.
const (
	ProviderOllama      = "ollama"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderBedrock     = "bedrock"
	ProviderHuggingFace = "huggingface"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM
	LLMProvider       string
	LLMModel          string
	OllamaHost        string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	AnthropicAPIKey   string
	HuggingFaceAPIKey string
	AWSRegion         string

	// Models
	NERModelDir    string
	IntentModelDir string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// DefaultProject is used when a command does not name a project.
	DefaultProject string
	// InferenceConcurrency bounds concurrent extraction requests.
	InferenceConcurrency int
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "scrumbot"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "scrum"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:       strings.ToLower(getEnv("SCRUMBOT_LLM_PROVIDER", ProviderOllama)),
		LLMModel:          getEnv("SCRUMBOT_LLM_MODEL", "llama3.2"),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		HuggingFaceAPIKey: getEnv("HUGGINGFACEHUB_API_TOKEN", ""),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),

		NERModelDir:    getEnv("SCRUMBOT_NER_MODEL", "./models/ner"),
		IntentModelDir: getEnv("SCRUMBOT_INTENT_MODEL", "./models/intent"),

		LogFile:  getEnv("SCRUMBOT_LOG_FILE", "/tmp/scrumbot.log"),
		LogLevel: parseLogLevel(getEnv("SCRUMBOT_LOG_LEVEL", "INFO")),

		DefaultProject:       getEnv("SCRUMBOT_DEFAULT_PROJECT", ""),
		InferenceConcurrency: getEnvInt("SCRUMBOT_INFERENCE_CONCURRENCY", 4),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
