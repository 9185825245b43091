package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port int

	// storage
	StoreDriver       string
	DBURL             string
	MongoURI          string
	MongoDB           string
	MongoTransactions bool

	// auth
	JWTSecret     string
	JWTTTLMinutes int

	// media
	MediaDriver      string
	CloudName        string
	CloudAPIKey      string
	CloudAPISecret   string
	CloudinaryFolder string
	MediaDir         string
	MediaBaseURL     string

	// redis (cache + retry queue), optional
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CacheTTLSeconds int

	// media.delete retry worker
	WorkerConcurrency int
	WorkerHealthPort  int

	// tracing
	OTelEnabled  bool
	OTelEndpoint string

	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	// requests per minute
	AuthRateLimit       int
	AttendanceRateLimit int

	// admin bootstrap
	AdminUserName string
	AdminEmail    string
	AdminPassword string
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"

	MediaDriverCloudinary = "cloudinary"
	MediaDriverLocal      = "local"
)

func Load() Config {
	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 3000),

		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBURL:             getEnv("DB_URL", buildDBURL()),
		MongoURI:          getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:           getEnv("MONGO_DB", "attendhub"),
		MongoTransactions: getEnvBool("MONGO_TRANSACTIONS", false),

		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTTTLMinutes: getEnvInt("JWT_TTL_MINUTES", 60*24),

		MediaDriver:      strings.ToLower(getEnv("MEDIA_DRIVER", MediaDriverLocal)),
		CloudName:        getEnv("CLOUD_NAME", ""),
		CloudAPIKey:      getEnv("API_KEY", ""),
		CloudAPISecret:   getEnv("API_SECRET", ""),
		CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "attendhub"),
		MediaDir:         getEnv("MEDIA_DIR", "./uploads"),
		MediaBaseURL:     getEnv("MEDIA_BASE_URL", "http://localhost:3000/uploads"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 30),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerHealthPort:  getEnvInt("WORKER_HEALTH_PORT", 3001),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 10<<20)),

		AuthRateLimit:       getEnvInt("AUTH_RATE_LIMIT", 20),
		AttendanceRateLimit: getEnvInt("ATTENDANCE_RATE_LIMIT", 60),

		AdminUserName: getEnv("ADMIN_USERNAME", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Validate reports settings that would make the api unusable at startup.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.MediaDriver {
	case MediaDriverLocal:
	case MediaDriverCloudinary:
		if c.CloudName == "" || c.CloudAPIKey == "" || c.CloudAPISecret == "" {
			return fmt.Errorf("cloudinary media driver needs CLOUD_NAME, API_KEY and API_SECRET")
		}
	default:
		return fmt.Errorf("unknown MEDIA_DRIVER %q", c.MediaDriver)
	}

	if c.Env == "prod" && c.JWTSecret == "dev-secret-change-me" {
		return fmt.Errorf("JWT_SECRET must be set in prod")
	}

	return nil
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "attendhub")
	pass := getEnv("DB_PASSWORD", "attendhub")
	name := getEnv("DB_NAME", "attendhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not an integer, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
