package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"study-backend/internal/llm"
	"study-backend/internal/shared/config"
)

func TestResolveBackend(t *testing.T) {
	cases := []struct {
		cfg  config.Config
		want string
	}{
		{config.Config{}, "memory"},
		{config.Config{DatabaseURL: "postgres://x"}, "postgres"},
		{config.Config{RedisURL: "redis://x"}, "redis"},
		{config.Config{DatabaseURL: "postgres://x", RedisURL: "redis://x"}, "postgres"},
		{config.Config{StorageBackend: "redis", DatabaseURL: "postgres://x"}, "redis"},
	}
	for _, tc := range cases {
		if got := resolveBackend(tc.cfg); got != tc.want {
			t.Fatalf("resolveBackend(%+v) = %s, want %s", tc.cfg, got, tc.want)
		}
	}
}

func TestBuildDevUsesMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(config.Config{Env: "dev", UploadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()
	if app.Store.Name() != "memory" {
		t.Fatalf("expected memory store, got %s", app.Store.Name())
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"storage":"memory"`) {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}
}

func TestBuildProductionRequiresPersistentStorage(t *testing.T) {
	if _, err := Build(config.Config{Env: "production", UploadDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for memory storage in production")
	}
}

func TestBuildGeneratorSelection(t *testing.T) {
	cases := []struct {
		name        string
		cfg         config.Config
		placeholder bool
		wantErr     bool
	}{
		{"no key", config.Config{LLMProvider: "openai"}, true, false},
		{"openai", config.Config{LLMProvider: "openai", OpenAIAPIKey: "k"}, false, false},
		{"anthropic", config.Config{LLMProvider: "anthropic", AnthropicAPIKey: "k"}, false, false},
		{"anthropic without key", config.Config{LLMProvider: "anthropic", OpenAIAPIKey: "k"}, true, false},
		{"unknown", config.Config{LLMProvider: "cohere"}, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen, err := buildGenerator(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildGenerator: %v", err)
			}
			_, isPlaceholder := gen.(llm.PlaceholderClient)
			if isPlaceholder != tc.placeholder {
				t.Fatalf("placeholder=%v, want %v (%T)", isPlaceholder, tc.placeholder, gen)
			}
		})
	}
}
