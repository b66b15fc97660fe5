package config

import (
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Values are resolved once at
// startup and treated as immutable for the process lifetime.
type Config struct {
	ServerAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	MinioPublicURL string // base URL assets are served from, e.g. a CDN front

	// Jamendo provider. The client ID is injected here instead of living as
	// a package constant so credentials have an explicit lifecycle.
	JamendoBaseURL  string
	JamendoClientID string

	JWTSecret string

	FFprobePath string

	// Ingestion defaults.
	DefaultGenre       string
	DefaultReleaseDate string // placeholder applied only as a last resort
	IngestWorkers      int
	MaxFetchLimit      int
	SyncUsername       string // catalog owner used by the scheduled sync CLI
	MaxUploadBytes     int64  // ceiling for user-submitted audio files
	MaxAssetFetchBytes int64  // guard ceiling when pulling provider assets

	LogLevel string
	LogPath  string
}

var (
	cfg     *Config
	loadCfg sync.Once
)

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvInt64 gets an environment variable as int64 or returns a default value.
func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or
// defaults. Subsequent calls return the same instance.
func Load() *Config {
	loadCfg.Do(func() {
		// godotenv.Load does not override variables already present in the
		// environment.
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, relying on environment variables and defaults.")
		}

		cfg = &Config{
			ServerAddr: getEnv("SERVER_ADDR", ":8080"),

			DBHost:     getEnv("DB_HOST", "127.0.0.1"),
			DBPort:     getEnv("DB_PORT", "3306"),
			DBUser:     getEnv("DB_USER", "root"),
			DBPassword: os.Getenv("DB_PASSWORD"),
			DBName:     getEnv("DB_NAME", "melodex"),

			RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),

			MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioBucket:    getEnv("MINIO_BUCKET", "melodex"),
			MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
			MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
			MinioPublicURL: getEnv("MINIO_PUBLIC_URL", ""),

			JamendoBaseURL:  getEnv("JAMENDO_BASE_URL", "https://api.jamendo.com/v3.0"),
			JamendoClientID: os.Getenv("JAMENDO_CLIENT_ID"),

			JWTSecret: getEnv("JWT_SECRET", "melodex-dev-secret"),

			FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

			DefaultGenre:       getEnv("INGEST_DEFAULT_GENRE", "pop"),
			DefaultReleaseDate: getEnv("INGEST_DEFAULT_RELEASE_DATE", "2020-01-01"),
			IngestWorkers:      getEnvInt("INGEST_WORKERS", 4),
			MaxFetchLimit:      getEnvInt("INGEST_MAX_FETCH", 100),
			SyncUsername:       getEnv("INGEST_SYNC_USER", "catalog"),
			MaxUploadBytes:     getEnvInt64("MAX_UPLOAD_BYTES", 15*1024*1024),
			MaxAssetFetchBytes: getEnvInt64("MAX_ASSET_FETCH_BYTES", 64*1024*1024),

			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogPath:  getEnv("LOG_PATH", ""),
		}
	})
	return cfg
}
