package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

type Config struct {
	Oracle    OracleConfig
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Ollama    OllamaConfig
	Embedding EmbeddingConfig
	Reference ReferenceConfig
	Google    GoogleSearchConfig
	Quota     QuotaConfig
	Redis     RedisConfig
	Log       LogConfig
	Prices    PricesConfig
}

type OracleConfig struct {
	Provider string        // "gemini" (default), "openai" or "ollama"
	Timeout  time.Duration // per classification call
	MaxImage int           // longest edge in px before upload, defaults to 800
}

type GeminiConfig struct {
	APIKey string
	Model  string // defaults to gemini-2.5-flash
}

type OpenAIConfig struct {
	Token   string
	Model   string
	BaseURL string // any OpenAI-compatible server, e.g. llama.cpp
}

type OllamaConfig struct {
	URL   string
	Model string
}

type EmbeddingConfig struct {
	URL          string        // face embedding server, defaults to http://localhost:8000
	ModelURL     string        // remote model asset location passed to the server on first load
	Timeout      time.Duration // per extraction request
	ZeroDistance float64       // euclidean distance at which similarity reaches 0
}

type ReferenceConfig struct {
	WikipediaURL string        // MediaWiki action API endpoint
	Timeout      time.Duration // per HTTP call
	ThumbSize    int           // requested thumbnail width
	CacheTTL     time.Duration
}

type GoogleSearchConfig struct {
	APIKey string
	CX     string // programmable search engine id
}

// Enabled reports whether Google image search can be used as a portrait source.
func (c *GoogleSearchConfig) Enabled() bool {
	return c.APIKey != "" && c.CX != ""
}

type QuotaConfig struct {
	DailyLimit int
	Path       string // JSON file used when Redis is not configured
}

type RedisConfig struct {
	URL string // redis://host:port/db; empty disables Redis
}

type LogConfig struct {
	Level    string
	Format   string // "text" or "json"
	FilePath string // optional, rotated with lumberjack
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
	Batch    RequestPricing `yaml:"batch"`
}

type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a positive Go duration string such as "15s".
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	return &Config{
		Oracle: OracleConfig{
			Provider: strings.ToLower(envString("ORACLE_PROVIDER", "gemini")),
			Timeout:  envDuration("ORACLE_TIMEOUT", 30*time.Second),
			MaxImage: envInt("ORACLE_MAX_IMAGE", 800),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  envString("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		OpenAI: OpenAIConfig{
			Token:   os.Getenv("OPENAI_TOKEN"),
			Model:   envString("OPENAI_MODEL", "gpt-4.1-mini"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Ollama: OllamaConfig{
			URL:   envString("OLLAMA_URL", "http://localhost:11434"),
			Model: envString("OLLAMA_MODEL", "llama3.2-vision:11b"),
		},
		Embedding: EmbeddingConfig{
			URL:          envString("EMBEDDING_URL", "http://localhost:8000"),
			ModelURL:     envString("EMBEDDING_MODEL_URL", "https://cdn.jsdelivr.net/npm/@vladmandic/face-api/model/"),
			Timeout:      envDuration("EMBEDDING_TIMEOUT", 20*time.Second),
			ZeroDistance: envFloat("FACE_ZERO_DISTANCE", 0.6),
		},
		Reference: ReferenceConfig{
			WikipediaURL: envString("WIKIPEDIA_API_URL", "https://en.wikipedia.org/w/api.php"),
			Timeout:      envDuration("REFERENCE_TIMEOUT", 10*time.Second),
			ThumbSize:    envInt("REFERENCE_THUMB_SIZE", 500),
			CacheTTL:     envDuration("REFERENCE_CACHE_TTL", 24*time.Hour),
		},
		Google: GoogleSearchConfig{
			APIKey: os.Getenv("GOOGLE_SEARCH_API_KEY"),
			CX:     os.Getenv("GOOGLE_SEARCH_CX"),
		},
		Quota: QuotaConfig{
			DailyLimit: envInt("SEARCH_DAILY_LIMIT", 100),
			Path:       envString("SEARCH_QUOTA_PATH", "search_quota.json"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Log: LogConfig{
			Level:    envString("LOG_LEVEL", "info"),
			Format:   envString("LOG_FORMAT", "text"),
			FilePath: os.Getenv("LOG_FILE"),
		},
		Prices: prices,
	}
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	return ModelPricing{}
}
