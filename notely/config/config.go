package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBSSLMode  string

	// SupabaseJWTSecret verifies bearer tokens issued by the identity provider.
	SupabaseJWTSecret string

	// SummarizerProvider is "groq" or "ollama".
	SummarizerProvider string
	GroqAPIKey         string
	GroqModel          string
	GroqBaseURL        string
	OllamaURL          string
	OllamaModel        string
	SummarizeTimeout   time.Duration

	ServerAddr string

	// Client side (notesync driver).
	APIURL         string
	Token          string
	CacheStaleTime time.Duration
	CacheGCTime    time.Duration
}

func LoadConfig() Config {
	// A missing .env is normal in deployed environments.
	_ = godotenv.Load()

	return Config{
		DBUser:             getEnv("DB_USER", ""),
		DBPassword:         getEnv("DB_PASSWORD", ""),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBName:             getEnv("DB_NAME", ""),
		DBSSLMode:          getEnv("DB_SSLMODE", "disable"),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
		SummarizerProvider: getEnv("SUMMARIZER_PROVIDER", "groq"),
		GroqAPIKey:         getEnv("GROQ_API_KEY", ""),
		GroqModel:          getEnv("GROQ_MODEL", "llama3-8b-8192"),
		GroqBaseURL:        getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		OllamaURL:          getEnv("OLLAMA_URL", "http://localhost:11434/api"),
		OllamaModel:        getEnv("OLLAMA_MODEL", "llama3"),
		SummarizeTimeout:   getDuration("SUMMARIZE_TIMEOUT", 30*time.Second),
		ServerAddr:         getEnv("SERVER_ADDR", ":8000"),
		APIURL:             getEnv("NOTELY_API_URL", "http://localhost:8000"),
		Token:              getEnv("NOTELY_TOKEN", ""),
		CacheStaleTime:     getDuration("CACHE_STALE_TIME", 5*time.Minute),
		CacheGCTime:        getDuration("CACHE_GC_TIME", 30*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

// getDuration falls back when the value is unset or not a valid time.ParseDuration string.
func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
