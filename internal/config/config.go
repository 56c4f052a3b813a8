package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Gemini (embeddings + generation)
	GeminiAPIKey          string
	GeminiModel           string
	GoogleEmbeddingsModel string
	GeminiTier            string
	VectorDimensions      int

	// Provider call deadlines
	EmbeddingTimeout  time.Duration
	GenerationTimeout time.Duration

	// Retrieval
	TopK             int
	MaxMensagemChars int
	MaxContextoChars int

	// Sessions
	SessaoInatividade time.Duration
	SessaoSweep       time.Duration

	// Embedding cache maintenance
	CacheMaxIdade time.Duration

	// Vector index rebuild interval
	IndexRebuild time.Duration

	// Redis (session persistence + rate limiting)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	OTLPEndpoint  string
	TracingEnable bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/conta_luz"),
		DBName:   getEnv("DB_NAME", "conta_luz"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),

		EmbeddingTimeout:  getEnvDuration("EMBEDDING_TIMEOUT", 15*time.Second),
		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),

		TopK:             getEnvInt("RETRIEVAL_TOP_K", 5),
		MaxMensagemChars: getEnvInt("MAX_MENSAGEM_CHARS", 1000),
		MaxContextoChars: getEnvInt("MAX_CONTEXTO_CHARS", 6000),

		SessaoInatividade: getEnvDuration("SESSAO_INATIVIDADE", 30*time.Minute),
		SessaoSweep:       getEnvDuration("SESSAO_SWEEP", 15*time.Minute),

		CacheMaxIdade: getEnvDuration("CACHE_MAX_IDADE", 90*24*time.Hour),

		IndexRebuild: getEnvDuration("INDEX_REBUILD", time.Hour),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnable: getEnvBool("TRACING_ENABLED", false),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", cfg.TopK)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
