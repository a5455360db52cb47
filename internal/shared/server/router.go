package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"study-backend/internal/documents"
	"study-backend/internal/questions"
	"study-backend/internal/services/health"
	"study-backend/internal/shared/config"
	"study-backend/internal/shared/metrics"
	"study-backend/internal/shared/server/middleware"
	"study-backend/internal/shared/server/respond"
	"study-backend/internal/users"
)

// RouterDeps holds the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	StorageName     string
	DocumentHandler *documents.Handler
	QuestionHandler *questions.Handler
	UserHandler     *users.Handler
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	healthSvc := health.NewService(deps.StorageName)
	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		respond.OK(c, healthSvc.Status())
	})

	limited := api.Group("")
	if rules := rateLimitRules(deps.Config); len(rules) > 0 {
		limited.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rules,
			DefaultGroup: "DEFAULT",
			GroupFor:     rateLimitGroup,
			Limiter:      deps.RateLimiter,
		}))
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(limited)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(limited)
	}
	if deps.QuestionHandler != nil {
		deps.QuestionHandler.RegisterRoutes(limited)
	}

	return r
}

func rateLimitRules(cfg config.Config) map[string]middleware.RateLimitRule {
	if cfg.RateLimitPerMin <= 0 || cfg.RateLimitBurst <= 0 {
		return nil
	}
	perSecond := float64(cfg.RateLimitPerMin) / 60.0
	generateBurst := cfg.RateLimitBurst / 4
	if generateBurst < 1 {
		generateBurst = 1
	}
	return map[string]middleware.RateLimitRule{
		"DEFAULT":  {Rate: perSecond, Burst: cfg.RateLimitBurst},
		"GENERATE": {Rate: perSecond / 4, Burst: generateBurst},
	}
}

// rateLimitGroup puts question generation in its own, smaller bucket.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodPost && c.FullPath() == "/api/questions/generate" {
		return "GENERATE"
	}
	return "DEFAULT"
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
