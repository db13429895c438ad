package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port       string
	Env        string
	CORSOrigin string

	// Chat provider
	ChatProvider    string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	GeminiModel     string
	MaxOutputTokens int

	// Catalog persistence (optional)
	DatabaseURL   string
	RedisURL      string
	MigrationsDir string
	InsertWorkers int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:            getEnvOrDefault("PORT", "3000"),
		Env:             getEnvOrDefault("ENV", "development"),
		CORSOrigin:      getEnvOrDefault("CORS_ORIGIN", "*"),
		ChatProvider:    getEnvOrDefault("CHAT_PROVIDER", "openai"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnvOrDefault("OPENAI_MODEL", "gpt-4"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		MaxOutputTokens: getEnvAsIntOrDefault("MAX_OUTPUT_TOKENS", 300),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		MigrationsDir:   getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		InsertWorkers:   getEnvAsIntOrDefault("INSERT_WORKERS", 2),
	}

	return cfg
}

// Validate rejects combinations the server cannot start with. Missing API
// keys are left to the provider call to report.
func (c *Config) Validate() error {
	switch c.ChatProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported CHAT_PROVIDER %q", c.ChatProvider)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("MAX_OUTPUT_TOKENS must be positive, got %d", c.MaxOutputTokens)
	}
	if c.RedisURL != "" && c.DatabaseURL == "" {
		return fmt.Errorf("REDIS_URL requires DATABASE_URL")
	}
	if c.InsertWorkers <= 0 {
		return fmt.Errorf("INSERT_WORKERS must be positive, got %d", c.InsertWorkers)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
