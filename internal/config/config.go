package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string

	// StoreBackend selects the document store: "memory", "pebble" or
	// "postgres".
	StoreBackend string
	PebblePath   string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret string

	AvatarDir     string
	AvatarBaseURL string
}

func Load() *Config {
	// Missing .env is fine; env vars win either way.
	_ = godotenv.Load()

	return &Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		StoreBackend:  getEnv("STORE_BACKEND", "pebble"),
		PebblePath:    getEnv("PEBBLE_PATH", "data/pigeon"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "pigeon"),
		DBPassword:    getEnv("DB_PASSWORD", "pigeon_dev_password"),
		DBName:        getEnv("DB_NAME", "pigeon"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		AvatarDir:     getEnv("AVATAR_DIR", "data/avatars"),
		AvatarBaseURL: getEnv("AVATAR_BASE_URL", "/avatars"),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}
