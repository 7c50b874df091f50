package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr            string
	DatabaseURL         string
	JWTSecret           string
	JWTIssuer           string
	AccessTokenTTL      time.Duration
	AutoMigrate         bool
	MaxUploadBytes      int64
	LogLevel            string
	AllowedOrigins      []string
	SkippedDetailsLimit int
	DBConnectAttempts   int
	DBConnectDelay      time.Duration
}

// source resolves a key from the process environment first and the
// optional YAML file second. File keys are the lower-cased variable names.
type source struct {
	file map[string]string
}

// Load reads .env (ENV_FILE overrides the path), then the YAML file named by
// CONFIG_PATH, then the environment. Variables already set in the
// environment are never replaced by .env or the file.
func Load() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	src := source{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		file, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}

	cfg := Config{
		HTTPAddr:            src.getEnv("HTTP_ADDR", ":5000"),
		DatabaseURL:         src.getEnv("DATABASE_URL", ""),
		JWTSecret:           src.getEnv("JWT_SECRET", ""),
		JWTIssuer:           src.getEnv("JWT_ISSUER", "species-tracker"),
		AccessTokenTTL:      src.getDurationEnv("ACCESS_TOKEN_TTL", time.Hour),
		AutoMigrate:         src.getBoolEnv("AUTO_MIGRATE", true),
		MaxUploadBytes:      int64(src.getIntEnv("MAX_UPLOAD_BYTES", 10<<20)),
		LogLevel:            strings.ToLower(src.getEnv("LOG_LEVEL", "info")),
		AllowedOrigins:      splitList(src.getEnv("ALLOWED_ORIGINS", "")),
		SkippedDetailsLimit: src.getIntEnv("SKIPPED_DETAILS_LIMIT", 10),
		DBConnectAttempts:   src.getIntEnv("DB_CONNECT_ATTEMPTS", 30),
		DBConnectDelay:      src.getDurationEnv("DB_CONNECT_DELAY", 2*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return Config{}, errors.New("JWT_SECRET must be at least 32 characters")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.SkippedDetailsLimit <= 0 {
		cfg.SkippedDetailsLimit = 10
	}
	if cfg.DBConnectAttempts <= 0 {
		cfg.DBConnectAttempts = 1
	}

	return cfg, nil
}

func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, nil
}

func (s source) lookup(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(s.file[strings.ToLower(key)])
}

func (s source) getEnv(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func (s source) getBoolEnv(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func (s source) getIntEnv(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
