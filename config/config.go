package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	JWTSecret      string
	ClientBaseURL  string
	Redis          RedisConfig
	Translate      TranslateConfig
	STT            STTConfig
	Rooms          RoomConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// TranslateConfig configures the translation fallback pipeline.
type TranslateConfig struct {
	// LibreTranslate-compatible base URLs, raced concurrently.
	LibreBases  []string
	MyMemoryURL string
	// Budget bounds the whole pipeline, including the sequential retry phase.
	Budget time.Duration
}

// STTConfig points at an OpenAI-compatible transcription endpoint.
type STTConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type RoomConfig struct {
	// EmptyGrace is how long an empty room survives before the sweeper ends it.
	EmptyGrace time.Duration
	// MaxAge ends rooms regardless of occupancy.
	MaxAge        time.Duration
	SweepInterval time.Duration
}

func Load() *Config {
	// Parse allowed origins (comma-separated)
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")

	libreStr := getEnv("LIBRE_TRANSLATE_URLS", "https://libretranslate.de,https://translate.argosopentech.com")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		ClientBaseURL:  getEnv("CLIENT_BASE_URL", "http://localhost:3000"),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Translate: TranslateConfig{
			LibreBases:  strings.Split(libreStr, ","),
			MyMemoryURL: getEnv("MYMEMORY_URL", "https://api.mymemory.translated.net/get"),
			Budget:      getDuration("TRANSLATE_BUDGET", 8*time.Second),
		},
		STT: STTConfig{
			BaseURL: getEnv("STT_BASE_URL", "http://localhost:8000/v1"),
			Model:   getEnv("STT_MODEL", "mistralai/Voxtral-Small-24B-2507"),
			Timeout: getDuration("STT_TIMEOUT", 20*time.Second),
		},
		Rooms: RoomConfig{
			EmptyGrace:    getDuration("ROOM_EMPTY_GRACE", 5*time.Minute),
			MaxAge:        getDuration("ROOM_MAX_AGE", 2*time.Hour),
			SweepInterval: getDuration("ROOM_SWEEP_INTERVAL", time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
