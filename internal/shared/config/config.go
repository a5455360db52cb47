package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultMaxUploadBytes = 10 << 20

// Config holds application configuration.
type Config struct {
	Port              string
	Env               string
	CORSAllowOrigin   []string
	StorageBackend    string
	DatabaseURL       string
	RedisURL          string
	UploadDir         string
	MaxUploadBytes    int64
	LLMProvider       string
	LLMModel          string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	GenerationTimeout time.Duration
	ExtractionTimeout time.Duration
	OCRConcurrency    int64
	TesseractPath     string
	LogLevel          string
	RateLimitPerMin   int
	RateLimitBurst    int
}

// Load reads configuration from an optional .env file, an optional YAML file
// named by CONFIG_FILE, and environment variables, in increasing precedence.
func Load() Config {
	// Missing files are fine; existing env vars are never overwritten.
	_ = godotenv.Load(".env")
	_ = godotenv.Load("cmd/.env")

	src := source{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		file, err := readYAML(path)
		if err != nil {
			log.Printf("config file %s ignored: %v", path, err)
		}
		src.file = file
	}
	return src.load()
}

type source struct {
	file map[string]string
}

func (s source) load() Config {
	env := normalizeEnv(s.get("ENV", "dev"))
	dbURL := s.get("DATABASE_URL", "")
	redisURL := s.get("REDIS_URL", "")

	if env == "production" && dbURL == "" && redisURL == "" {
		log.Printf("DATABASE_URL or REDIS_URL is required in production")
	}

	return Config{
		Port:              s.get("PORT", "8080"),
		Env:               env,
		CORSAllowOrigin:   splitAndTrim(s.get("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		StorageBackend:    normalizeBackend(s.get("STORAGE_BACKEND", "")),
		DatabaseURL:       dbURL,
		RedisURL:          redisURL,
		UploadDir:         s.get("UPLOAD_DIR", "./uploads"),
		MaxUploadBytes:    s.int64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		LLMProvider:       strings.ToLower(strings.TrimSpace(s.get("LLM_PROVIDER", "openai"))),
		LLMModel:          s.get("LLM_MODEL", ""),
		OpenAIAPIKey:      s.get("OPENAI_API_KEY", ""),
		AnthropicAPIKey:   s.get("ANTHROPIC_API_KEY", ""),
		GenerationTimeout: s.duration("GENERATION_TIMEOUT", 30*time.Second),
		ExtractionTimeout: s.duration("EXTRACTION_TIMEOUT", 2*time.Minute),
		OCRConcurrency:    s.int64("OCR_CONCURRENCY", 2),
		TesseractPath:     s.get("TESSERACT_PATH", "tesseract"),
		LogLevel:          s.get("LOG_LEVEL", "info"),
		RateLimitPerMin:   int(s.int64("RATE_LIMIT_PER_MINUTE", 120)),
		RateLimitBurst:    int(s.int64("RATE_LIMIT_BURST", 20)),
	}
}

func (s source) get(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if val, ok := s.file[key]; ok && val != "" {
		return val
	}
	return def
}

func (s source) int64(key string, def int64) int64 {
	raw := strings.TrimSpace(s.get(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}

// duration accepts Go duration strings or a bare number of seconds.
func (s source) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(s.get(key, ""))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return d
}

// readYAML loads a flat mapping of config keys. Keys are matched
// case-insensitively against the environment variable names.
func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(k))
		switch val := v.(type) {
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return out, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

// normalizeBackend returns "" when unset so bootstrap can infer the backend
// from the configured URLs.
func normalizeBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "redis":
		return "redis"
	case "memory", "mem":
		return "memory"
	default:
		return ""
	}
}
