package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	DatabaseURL      string
	DBConnectTimeout time.Duration
	JWTSecretKey     string
	ServerPort       int

	// CORSAllowedOrigins also restricts websocket upgrades.
	CORSAllowedOrigins []string

	// AMQP publishing is disabled when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string

	// Results archiving is disabled unless all R2 credentials are set.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
	ResultsPrefix     string
}

// Load reads the configuration from environment variables. A .env file in
// the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an arbitrary lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	dbURL := getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	timeout := 5 * time.Second
	if raw := getenv("DB_CONNECT_TIMEOUT"); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_CONNECT_TIMEOUT environment variable: %w", err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("DB_CONNECT_TIMEOUT must be positive, got %s", raw)
		}
	}

	exchange := getenv("AMQP_EXCHANGE")
	if exchange == "" {
		exchange = "darts.events"
	}
	prefix := getenv("RESULTS_PREFIX")
	if prefix == "" {
		prefix = "results"
	}

	cfg := &Config{
		DatabaseURL:        dbURL,
		DBConnectTimeout:   timeout,
		JWTSecretKey:       jwtKey,
		ServerPort:         port,
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS")),
		AMQPURL:            getenv("AMQP_URL"),
		AMQPExchange:       exchange,
		R2AccountID:        getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:      getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:  getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:       getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:    getenv("R2_PUBLIC_BASE_URL"),
		ResultsPrefix:      prefix,
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
