package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	MongoURL   string
	MongoDB    string
	JWTSecret  string
	AccessTTL  time.Duration
	CORSOrigin string
	// Redis - optional cache for resolved avatar URLs
	RedisURL     string
	AvatarURLTTL time.Duration
	// Asset host (S3-compatible) - profile pictures disabled if not configured
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	// Meilisearch - optional username search acceleration
	MeiliURL       string
	MeiliMasterKey string
}

func Load() Config {
	return Config{
		Addr:           getenv("API_ADDR", ":8080"),
		MongoURL:       getenv("MONGO_URL", "mongodb://localhost:27017"),
		MongoDB:        getenv("MONGO_DB", "taskboard"),
		JWTSecret:      getenv("TASKBOARD_JWT_SECRET", "taskboard-dev-secret"),
		AccessTTL:      time.Duration(getenvInt("TASKBOARD_ACCESS_TTL_SECONDS", 3600)) * time.Second,
		CORSOrigin:     getenv("TASKBOARD_CORS_ORIGIN", "*"),
		RedisURL:       getenv("REDIS_URL", ""),
		AvatarURLTTL:   time.Duration(getenvInt("TASKBOARD_AVATAR_URL_TTL_SECONDS", 600)) * time.Second,
		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "taskboard-profile-pictures"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
