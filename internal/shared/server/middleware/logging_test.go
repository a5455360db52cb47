package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.DELETE("/api/documents/:id", func(c *gin.Context) {
		SetUserID(c, 3)
		SetDocumentID(c, 42)
		c.JSON(http.StatusOK, gin.H{"message": "Document deleted successfully"})
	})

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = origStdout
	}()

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/42", nil)
	req.Header.Set("X-Request-Id", "req-123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	_ = w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read log output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json %q: %v", last, err)
	}

	if payload["msg"] != "request.complete" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	for _, key := range []string{"request_id", "user_id", "document_id", "duration_ms", "status", "route"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["request_id"] != "req-123" {
		t.Fatalf("unexpected request_id: %v", payload["request_id"])
	}
	if payload["user_id"] != "3" || payload["document_id"] != "42" {
		t.Fatalf("unexpected ids: %v %v", payload["user_id"], payload["document_id"])
	}
	if payload["route"] != "/api/documents/:id" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))
	id := resp.Header().Get("X-Request-Id")
	if len(id) != 36 || resp.Body.String() != id {
		t.Fatalf("expected uuid request id, header=%q body=%q", id, resp.Body.String())
	}
}
