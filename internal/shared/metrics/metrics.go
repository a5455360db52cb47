package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	documentsUploadedTotal  atomic.Uint64
	extractionFailedTotal   atomic.Uint64
	questionsGeneratedTotal atomic.Uint64
	generationFailedTotal   atomic.Uint64

	generationDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncDocumentsUploaded counts a stored upload.
func IncDocumentsUploaded() {
	documentsUploadedTotal.Add(1)
}

// IncExtractionFailed counts an upload whose text could not be extracted.
func IncExtractionFailed() {
	extractionFailedTotal.Add(1)
}

// AddQuestionsGenerated adds n persisted questions.
func AddQuestionsGenerated(n int) {
	if n > 0 {
		questionsGeneratedTotal.Add(uint64(n))
	}
}

// IncGenerationFailed counts a failed generation request.
func IncGenerationFailed() {
	generationFailedTotal.Add(1)
}

// ObserveGenerationDurationMs records a provider call duration in milliseconds.
func ObserveGenerationDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	generationDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "documents_uploaded_total", "Documents stored", documentsUploadedTotal.Load())
	writeCounter(&buf, "extraction_failed_total", "Uploads rejected by text extraction", extractionFailedTotal.Load())
	writeCounter(&buf, "questions_generated_total", "Questions persisted", questionsGeneratedTotal.Load())
	writeCounter(&buf, "generation_failed_total", "Question generation failures", generationFailedTotal.Load())
	writeHistogram(&buf, "generation_duration_ms", "Question generation duration in milliseconds", generationDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
