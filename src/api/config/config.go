package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stake-plus/factcheck/src/trial"
)

// Config carries everything the API process needs, loaded from environment
// variables with sensible defaults.
type Config struct {
	Port        string
	LogFile     string
	CORSOrigins []string

	RetrievalTimeout time.Duration
	LLMTimeout       time.Duration

	Trial trial.Config
}

func Load() Config {
	return Config{
		Port:             getEnv("PORT", "8090"),
		LogFile:          os.Getenv("LOG_FILE"),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RetrievalTimeout: getDuration("RETRIEVAL_TIMEOUT_SECONDS", 12*time.Second),
		LLMTimeout:       getDuration("LLM_TIMEOUT_SECONDS", 240*time.Second),
		Trial: trial.Config{
			Enabled:    getBool("TRIAL_MODE_ENABLED"),
			Provider:   getEnv("TRIAL_PROVIDER", "openai"),
			APIKey:     os.Getenv("TRIAL_API_KEY"),
			TokenLimit: getInt("TRIAL_TOKEN_LIMIT", 20000),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getBool(key string) bool {
	val := strings.ToLower(os.Getenv(key))
	return val == "1" || val == "true" || val == "yes"
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return val
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		log.Printf("config: invalid %s=%q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
