package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

type Config struct {
	Env   string
	Port  int
	Store string

	DBURL      string
	DBMaxConns int
	MongoURI   string
	MongoDB    string

	JWTSecret         string
	AccessTTLMinutes  int
	RefreshTTLDays    int
	RegisterRoles     []string
	CORSOrigins       []string
	RedisAddr         string
	AuthRatePerMinute int
	OTLPEndpoint      string

	AdminEmail    string
	AdminPassword string
	AdminName     string

	JanitorSchedule string
}

func Load() Config {
	if os.Getenv("APP_ENV") == "dev" {
		// a missing .env is fine; real env vars win either way
		_ = godotenv.Load()
	}

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		Store: strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),

		DBURL:      getEnv("DATABASE_URL", buildDBURL()),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),
		MongoURI:   getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:    getEnv("MONGO_DB", "recipehub"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AccessTTLMinutes:  getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),
		RefreshTTLDays:    getEnvInt("JWT_REFRESH_TTL_DAYS", 7),
		RegisterRoles:     getEnvList("REGISTER_ALLOWED_ROLES", []string{"user"}),
		CORSOrigins:       getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		AuthRatePerMinute: getEnvInt("RATE_LIMIT_AUTH_PER_MINUTE", 20),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		JanitorSchedule: getEnv("JANITOR_SCHEDULE", "@every 1h"),
	}
}

// Validate reports configuration the binaries cannot start without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}

	switch c.Store {
	case DriverMemory, DriverPostgres, DriverMongo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store)
	}

	if c.AccessTTLMinutes <= 0 || c.RefreshTTLDays <= 0 {
		return errors.New("token lifetimes must be positive")
	}

	return nil
}

func (c Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "recipehub")
	pass := getEnv("DB_PASSWORD", "recipehub")
	name := getEnv("DB_NAME", "recipehub")
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
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
