package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime parameter of the service. All values come from the
// environment; a local .env file is honored when present.
type Config struct {
	DatabaseURL  string
	ServerPort   int
	JWTSecretKey string

	JudgeAPIURL  string
	JudgeAPIKey  string
	JudgeModel   string
	JudgeTimeout time.Duration

	// Optional R2/S3 archive of completed round results. Archiving is disabled
	// when the account ID is empty.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	judgeURL := os.Getenv("JUDGE_API_URL")
	if judgeURL == "" {
		return nil, fmt.Errorf("JUDGE_API_URL environment variable is not set")
	}
	judgeKey := os.Getenv("JUDGE_API_KEY")
	if judgeKey == "" {
		return nil, fmt.Errorf("JUDGE_API_KEY environment variable is not set")
	}
	judgeModel := os.Getenv("JUDGE_MODEL")
	if judgeModel == "" {
		judgeModel = "gpt-4o"
	}

	judgeTimeout := 90 * time.Second
	if v := os.Getenv("JUDGE_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("invalid JUDGE_TIMEOUT_SECONDS value %q", v)
		}
		judgeTimeout = time.Duration(seconds) * time.Second
	}

	portStr := os.Getenv("SERVER_PORT")
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

	origins := []string{"*"}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}

	cfg := &Config{
		DatabaseURL:        dbURL,
		ServerPort:         port,
		JWTSecretKey:       jwtKey,
		JudgeAPIURL:        judgeURL,
		JudgeAPIKey:        judgeKey,
		JudgeModel:         judgeModel,
		JudgeTimeout:       judgeTimeout,
		R2AccountID:        os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:      os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:  os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:       os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:    os.Getenv("R2_PUBLIC_BASE_URL"),
		CORSAllowedOrigins: origins,
	}

	return cfg, nil
}

// ArchiveEnabled reports whether the round-result archive is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.R2AccountID != ""
}
