package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"study-backend/internal/documents"
	"study-backend/internal/extract"
	"study-backend/internal/llm"
	anthropicllm "study-backend/internal/llm/anthropic"
	openaillm "study-backend/internal/llm/openai"
	"study-backend/internal/pipeline"
	"study-backend/internal/questions"
	"study-backend/internal/shared/config"
	"study-backend/internal/shared/server"
	"study-backend/internal/shared/server/middleware"
	"study-backend/internal/shared/storage/db"
	localstore "study-backend/internal/shared/storage/object/local"
	"study-backend/internal/shared/telemetry"
	"study-backend/internal/storage"
	"study-backend/internal/storage/memory"
	"study-backend/internal/storage/postgres"
	"study-backend/internal/storage/redisstore"
	"study-backend/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           storage.Store
	Pipeline        *pipeline.Service
	UsersService    *users.Service
	DocumentHandler *documents.Handler
	QuestionHandler *questions.Handler
	UserHandler     *users.Handler
}

// Overrides replaces collaborators that talk to external programs or APIs.
type Overrides struct {
	Store     storage.Store
	Extractor extract.Extractor
	Generator llm.Client
}

// Build prepares dependencies and the router from cfg.
func Build(cfg config.Config) (*App, error) {
	return BuildWith(cfg, Overrides{})
}

// BuildWith is Build with selected collaborators replaced.
func BuildWith(cfg config.Config, o Overrides) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.UploadDir) == "" {
		cfg.UploadDir = "./uploads"
	}
	if cfg.LogLevel != "" {
		telemetry.SetLevel(cfg.LogLevel)
	}
	ctx := context.Background()

	app := &App{Config: cfg}

	store := o.Store
	if store == nil {
		var err error
		store, app.DB, err = buildStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	app.Store = store

	extractor := o.Extractor
	if extractor == nil {
		extractor = extract.NewRouter(extract.PDF{}, extract.NewOCR(cfg.TesseractPath, cfg.OCRConcurrency, 0))
	}

	generator := o.Generator
	if generator == nil {
		var err error
		generator, err = buildGenerator(cfg)
		if err != nil {
			return nil, err
		}
	}

	app.Pipeline = pipeline.New(store, extractor, generator, localstore.New(cfg.UploadDir), pipeline.Limits{
		MaxUploadBytes:    cfg.MaxUploadBytes,
		ExtractionTimeout: cfg.ExtractionTimeout,
		GenerationTimeout: cfg.GenerationTimeout,
	})
	app.UsersService = users.NewService(store)
	app.DocumentHandler = documents.NewHandler(app.Pipeline)
	app.QuestionHandler = questions.NewHandler(app.Pipeline)
	app.UserHandler = users.NewHandler(app.UsersService)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		StorageName:     store.Name(),
		DocumentHandler: app.DocumentHandler,
		QuestionHandler: app.QuestionHandler,
		UserHandler:     app.UserHandler,
		RateLimiter:     middleware.NewRateLimiter(nil),
	})

	return app, nil
}

// Close releases the storage backend.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// resolveBackend picks the storage backend. An explicit setting wins;
// otherwise the configured URLs decide, falling back to memory.
func resolveBackend(cfg config.Config) string {
	if cfg.StorageBackend != "" {
		return cfg.StorageBackend
	}
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		return "postgres"
	case strings.TrimSpace(cfg.RedisURL) != "":
		return "redis"
	default:
		return "memory"
	}
}

func buildStorage(ctx context.Context, cfg config.Config) (storage.Store, *sql.DB, error) {
	backend := resolveBackend(cfg)
	var (
		store storage.Store
		sqlDB *sql.DB
		err   error
	)
	switch backend {
	case "postgres":
		store, sqlDB, err = buildPostgres(ctx, cfg)
	case "redis":
		store, err = buildRedis(ctx, cfg)
	case "memory":
		if !isDevLike(cfg.Env) {
			return nil, nil, fmt.Errorf("memory storage is not allowed in %s", cfg.Env)
		}
		telemetry.Info("bootstrap.storage", map[string]any{"backend": "memory"})
		return memory.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Error("bootstrap.storage_fallback", map[string]any{"backend": backend, "error": err.Error()})
			return memory.New(), nil, nil
		}
		return nil, nil, err
	}
	telemetry.Info("bootstrap.storage", map[string]any{"backend": backend})
	return store, sqlDB, nil
}

func buildPostgres(ctx context.Context, cfg config.Config) (storage.Store, *sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return postgres.New(sqlDB), sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (storage.Store, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	return redisstore.New(ctx, redisstore.Config{URL: cfg.RedisURL})
}

func buildGenerator(cfg config.Config) (llm.Client, error) {
	var base llm.Client
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			break
		}
		c, err := anthropicllm.NewClient(cfg.AnthropicAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		base = c
	case "openai", "":
		if cfg.OpenAIAPIKey == "" {
			break
		}
		c, err := openaillm.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		base = c
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
	if base == nil {
		telemetry.Warn("bootstrap.llm_unconfigured", map[string]any{"provider": cfg.LLMProvider})
		return llm.PlaceholderClient{}, nil
	}
	return llm.WithRetry(base), nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
