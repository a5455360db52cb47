package telemetry

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = orig
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestInfoWritesJSONLine(t *testing.T) {
	out := captureStdout(t, func() {
		Info("document.uploaded", map[string]any{"document_id": 7})
	})
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if entry["msg"] != "document.uploaded" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["document_id"] != float64(7) {
		t.Fatalf("missing field: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("missing ts: %v", entry)
	}
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	SetLevel("error")
	t.Cleanup(func() { SetLevel("info") })
	out := captureStdout(t, func() {
		Info("dropped", nil)
		Error("kept", nil)
	})
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("unexpected output %q", out)
	}
}
