package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"study-backend/internal/extract"
	"study-backend/internal/llm"
	"study-backend/internal/shared/storage/object/local"
	"study-backend/internal/storage"
	"study-backend/internal/storage/memory"
)

type fakeExtractor struct {
	mu    sync.Mutex
	text  string
	err   error
	block bool
	calls int
	paths []string
}

func (f *fakeExtractor) Extract(ctx context.Context, path string, mediaType string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGenerator struct {
	raw     string
	err     error
	block   bool
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	last    atomic.Value
}

func (g *fakeGenerator) GenerateQuestions(ctx context.Context, in llm.GenerateInput) (json.RawMessage, error) {
	g.calls.Add(1)
	g.last.Store(in)
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	return json.RawMessage(g.raw), nil
}

func pairsJSON(n int) string {
	items := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, fmt.Sprintf(`{"question":"Q%d?","answer":"A%d."}`, i, i))
	}
	return `{"questions":[` + strings.Join(items, ",") + `]}`
}

func pdfBytes(size int) []byte {
	b := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), size)...)
	return b[:size]
}

type fixture struct {
	svc       *Service
	store     *memory.Store
	extractor *fakeExtractor
	generator *fakeGenerator
	dir       string
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		store:     memory.New(),
		extractor: &fakeExtractor{text: "Mitochondria produce ATP."},
		generator: &fakeGenerator{raw: pairsJSON(5)},
		dir:       dir,
	}
	f.svc = New(f.store, f.extractor, f.generator, local.New(dir), limits)
	return f
}

func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(f.dir, "*", "*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return files
}

func (f *fixture) seedDocument(t *testing.T, questions int) (storage.Document, []storage.Question) {
	t.Helper()
	ctx := context.Background()
	doc, err := f.store.CreateDocument(ctx, storage.NewDocument{
		UserID: 1, Name: "notes.pdf", FileType: extract.MediaPDF, FileSize: 10, Content: "Photosynthesis converts light.",
	})
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
	if questions == 0 {
		return doc, nil
	}
	batch := make([]storage.NewQuestion, 0, questions)
	for i := 0; i < questions; i++ {
		batch = append(batch, storage.NewQuestion{DocumentID: doc.ID, Question: fmt.Sprintf("old %d", i), Answer: "old"})
	}
	qs, err := f.store.CreateQuestions(ctx, batch)
	if err != nil {
		t.Fatalf("seed questions: %v", err)
	}
	return doc, qs
}

func TestUploadPersistsExtractedTextVerbatim(t *testing.T) {
	f := newFixture(t, Limits{})
	f.extractor.text = "  Chapter 1\n\tCells divide.  \n"

	doc, err := f.svc.Upload(context.Background(), UploadInput{
		File:      bytes.NewReader(pdfBytes(2048)),
		MediaType: "application/pdf",
		FileName:  "notes.pdf",
		SizeBytes: 2048,
		OwnerID:   1,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Content != f.extractor.text {
		t.Fatalf("content not verbatim: %q", doc.Content)
	}
	if doc.ID == 0 || doc.UserID != 1 || doc.Name != "notes.pdf" || doc.FileType != "application/pdf" || doc.FileSize != 2048 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.UploadDate.IsZero() {
		t.Fatalf("expected upload date")
	}

	docs, err := f.svc.ListDocuments(context.Background(), 1)
	if err != nil || len(docs) != 1 || docs[0].ID != doc.ID {
		t.Fatalf("expected exactly one document, got %v %v", docs, err)
	}
	questions, _ := f.svc.ListQuestions(context.Background(), doc.ID)
	if len(questions) != 0 {
		t.Fatalf("upload must not create questions")
	}
	if len(f.storedFiles(t)) != 1 {
		t.Fatalf("expected stored upload")
	}
	if filepath.Base(f.extractor.paths[0]) == "notes.pdf" {
		t.Fatalf("expected randomized file name, got %s", f.extractor.paths[0])
	}
}

func TestUploadUnsupportedTypeSkipsExtractor(t *testing.T) {
	f := newFixture(t, Limits{})

	_, err := f.svc.Upload(context.Background(), UploadInput{
		File:      strings.NewReader("plain text"),
		MediaType: "text/plain",
		FileName:  "notes.txt",
		SizeBytes: 10,
		OwnerID:   1,
	})
	if !errors.Is(err, ErrUnsupportedMediaType) || !errors.Is(err, extract.ErrUnsupportedMediaType) {
		t.Fatalf("expected unsupported media type, got %v", err)
	}
	if f.extractor.callCount() != 0 {
		t.Fatalf("extractor must not run")
	}
	if len(f.storedFiles(t)) != 0 {
		t.Fatalf("no file should be written")
	}
}

func TestUploadAcceptsJPGAlias(t *testing.T) {
	f := newFixture(t, Limits{})
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 64)...)

	doc, err := f.svc.Upload(context.Background(), UploadInput{
		File: bytes.NewReader(jpeg), MediaType: "image/jpg", FileName: "board.jpg", SizeBytes: int64(len(jpeg)), OwnerID: 2,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.FileType != extract.MediaJPEG {
		t.Fatalf("expected normalized type, got %s", doc.FileType)
	}
}

func TestUploadExtractionFailureCreatesNothing(t *testing.T) {
	cause := errors.New("corrupt xref table")
	cases := map[string]func(*fakeExtractor){
		"error": func(e *fakeExtractor) { e.err = cause },
		"blank": func(e *fakeExtractor) { e.text = " \n\t " },
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Limits{})
			setup(f.extractor)

			_, err := f.svc.Upload(context.Background(), UploadInput{
				File: bytes.NewReader(pdfBytes(512)), MediaType: "application/pdf", FileName: "bad.pdf", SizeBytes: 512, OwnerID: 1,
			})
			if !errors.Is(err, ErrExtractionFailed) {
				t.Fatalf("expected ErrExtractionFailed, got %v", err)
			}
			if f.extractor.err != nil && !errors.Is(err, cause) {
				t.Fatalf("expected cause to be wrapped, got %v", err)
			}
			docs, _ := f.svc.ListDocuments(context.Background(), 1)
			if len(docs) != 0 {
				t.Fatalf("no document may be created, got %d", len(docs))
			}
			if len(f.storedFiles(t)) != 0 {
				t.Fatalf("stored file should be removed")
			}
		})
	}
}

func TestUploadExtractionTimeout(t *testing.T) {
	f := newFixture(t, Limits{ExtractionTimeout: 20 * time.Millisecond})
	f.extractor.block = true

	_, err := f.svc.Upload(context.Background(), UploadInput{
		File: bytes.NewReader(pdfBytes(256)), MediaType: "application/pdf", FileName: "slow.pdf", SizeBytes: 256, OwnerID: 1,
	})
	if !errors.Is(err, ErrExtractionFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected extraction timeout, got %v", err)
	}
}

func TestUploadIgnoresClientCancellation(t *testing.T) {
	f := newFixture(t, Limits{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Upload(ctx, UploadInput{
		File: bytes.NewReader(pdfBytes(256)), MediaType: "application/pdf", FileName: "a.pdf", SizeBytes: 256, OwnerID: 1,
	}); err != nil {
		t.Fatalf("expected upload to complete, got %v", err)
	}
}

func TestUploadValidation(t *testing.T) {
	valid := func() UploadInput {
		return UploadInput{File: bytes.NewReader(pdfBytes(64)), MediaType: "application/pdf", FileName: "a.pdf", SizeBytes: 64, OwnerID: 1}
	}
	cases := []struct {
		name  string
		edit  func(*UploadInput)
		field string
	}{
		{"missing file", func(in *UploadInput) { in.File = nil }, "file"},
		{"blank name", func(in *UploadInput) { in.FileName = "  " }, "fileName"},
		{"no owner", func(in *UploadInput) { in.OwnerID = 0 }, "userId"},
		{"negative owner", func(in *UploadInput) { in.OwnerID = -4 }, "userId"},
		{"empty file", func(in *UploadInput) { in.SizeBytes = 0 }, "fileSize"},
		{"too large", func(in *UploadInput) { in.SizeBytes = DefaultMaxUploadBytes + 1 }, "fileSize"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Limits{})
			in := valid()
			tc.edit(&in)
			_, err := f.svc.Upload(context.Background(), in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FieldError, got %T", err)
			}
			if _, ok := fe.Fields[tc.field]; !ok {
				t.Fatalf("expected field %s in %v", tc.field, fe.Fields)
			}
			if f.extractor.callCount() != 0 {
				t.Fatalf("extractor must not run")
			}
		})
	}
}

func TestUploadStoredBytesOverLimit(t *testing.T) {
	f := newFixture(t, Limits{MaxUploadBytes: 1024})

	_, err := f.svc.Upload(context.Background(), UploadInput{
		File: bytes.NewReader(pdfBytes(4096)), MediaType: "application/pdf", FileName: "big.pdf", SizeBytes: 100, OwnerID: 1,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(f.storedFiles(t)) != 0 {
		t.Fatalf("oversized file should not remain")
	}
}

func TestUploadDeclaredTypeMustMatchContent(t *testing.T) {
	f := newFixture(t, Limits{})

	_, err := f.svc.Upload(context.Background(), UploadInput{
		File: bytes.NewReader(pdfBytes(256)), MediaType: "image/png", FileName: "fake.png", SizeBytes: 256, OwnerID: 1,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if f.extractor.callCount() != 0 {
		t.Fatalf("extractor must not run on mismatched content")
	}
	if len(f.storedFiles(t)) != 0 {
		t.Fatalf("mismatched file should be removed")
	}
}

func TestGenerateReplacesExistingQuestions(t *testing.T) {
	f := newFixture(t, Limits{})
	doc, old := f.seedDocument(t, 3)
	start := time.Now().Add(-time.Second)

	got, err := f.svc.GenerateQuestions(context.Background(), doc.ID, 5)
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(got) == 0 || len(got) > 5 {
		t.Fatalf("expected 1..5 questions, got %d", len(got))
	}
	oldIDs := map[int64]bool{}
	for _, q := range old {
		oldIDs[q.ID] = true
	}
	for _, q := range got {
		if oldIDs[q.ID] {
			t.Fatalf("old question id %d reappeared", q.ID)
		}
		if q.DocumentID != doc.ID || q.CreatedAt.Before(start) {
			t.Fatalf("unexpected question %+v", q)
		}
	}
	listed, err := f.svc.ListQuestions(context.Background(), doc.ID)
	if err != nil || len(listed) != len(got) {
		t.Fatalf("expected only new questions, got %d (%v)", len(listed), err)
	}
	in := f.generator.last.Load().(llm.GenerateInput)
	if in.Text != doc.Content || in.Count != 5 {
		t.Fatalf("generator got %+v", in)
	}
}

func TestGenerateTruncatesToRequestedCount(t *testing.T) {
	f := newFixture(t, Limits{})
	f.generator.raw = pairsJSON(8)
	doc, _ := f.seedDocument(t, 0)

	got, err := f.svc.GenerateQuestions(context.Background(), doc.ID, 3)
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(got) != 3 || got[0].Question != "Q1?" || got[2].Question != "Q3?" {
		t.Fatalf("expected first 3 questions, got %+v", got)
	}
}

func TestNormalizeCount(t *testing.T) {
	cases := map[int]int{-2: 5, 0: 5, 1: 1, 12: 12, 50: 50, 51: 50, 1000: 50}
	for in, want := range cases {
		if got := NormalizeCount(in); got != want {
			t.Fatalf("NormalizeCount(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestGenerateDefaultCountReachesGenerator(t *testing.T) {
	f := newFixture(t, Limits{})
	doc, _ := f.seedDocument(t, 0)
	if _, err := f.svc.GenerateQuestions(context.Background(), doc.ID, 0); err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if in := f.generator.last.Load().(llm.GenerateInput); in.Count != DefaultQuestionCount {
		t.Fatalf("expected default count, got %d", in.Count)
	}
}

func TestGenerateAcceptsProviderShapes(t *testing.T) {
	cases := map[string]string{
		"array":         `[{"question":"Q1","answer":"A1"},{"question":"Q2","answer":"A2"}]`,
		"questions key": `{"questions":[{"question":"Q1","answer":"A1"},{"question":"Q2","answer":"A2"}]}`,
		"keyed objects": `{"2":{"question":"Q2","answer":"A2"},"1":{"question":"Q1","answer":"A1"}}`,
		"fenced":        "```json\n[{\"question\":\"Q1\",\"answer\":\"A1\"},{\"question\":\"Q2\",\"answer\":\"A2\"}]\n```",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Limits{})
			f.generator.raw = raw
			doc, _ := f.seedDocument(t, 0)
			got, err := f.svc.GenerateQuestions(context.Background(), doc.ID, 5)
			if err != nil {
				t.Fatalf("GenerateQuestions: %v", err)
			}
			if len(got) != 2 || got[0].Question != "Q1" || got[1].Answer != "A2" {
				t.Fatalf("unexpected questions %+v", got)
			}
		})
	}
}

func TestGenerateFailureKeepsExistingQuestions(t *testing.T) {
	cases := map[string]func(*fakeGenerator){
		"provider error": func(g *fakeGenerator) { g.err = errors.New("openai http status 500: boom") },
		"not json":       func(g *fakeGenerator) { g.raw = "Sure! Here are your questions." },
		"empty array":    func(g *fakeGenerator) { g.raw = `[]` },
		"no usable pair": func(g *fakeGenerator) { g.raw = `{"questions":[{"question":"","answer":"x"}]}` },
		"timeout":        func(g *fakeGenerator) { g.block = true },
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Limits{GenerationTimeout: 20 * time.Millisecond})
			setup(f.generator)
			doc, old := f.seedDocument(t, 3)

			_, err := f.svc.GenerateQuestions(context.Background(), doc.ID, 5)
			if !errors.Is(err, ErrGenerationFailed) {
				t.Fatalf("expected ErrGenerationFailed, got %v", err)
			}
			listed, err := f.svc.ListQuestions(context.Background(), doc.ID)
			if err != nil || len(listed) != 3 {
				t.Fatalf("expected 3 existing questions, got %d (%v)", len(listed), err)
			}
			for i := range old {
				if listed[i].ID != old[i].ID {
					t.Fatalf("existing questions changed")
				}
			}
		})
	}
}

func TestGenerateMissingDocument(t *testing.T) {
	f := newFixture(t, Limits{})
	_, err := f.svc.GenerateQuestions(context.Background(), 404, 5)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.generator.calls.Load() != 0 {
		t.Fatalf("generator must not be called")
	}
	if _, err := f.svc.GenerateQuestions(context.Background(), 0, 5); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for id 0, got %v", err)
	}
}

func TestGenerateCoalescesConcurrentCallsPerDocument(t *testing.T) {
	f := newFixture(t, Limits{})
	f.generator.started = make(chan struct{}, 4)
	f.generator.release = make(chan struct{})
	doc, _ := f.seedDocument(t, 0)

	var wg sync.WaitGroup
	results := make([][]storage.Question, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.svc.GenerateQuestions(context.Background(), doc.ID, 5)
	}()
	<-f.generator.started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = f.svc.GenerateQuestions(context.Background(), doc.ID, 5)
	}()
	time.Sleep(50 * time.Millisecond)
	close(f.generator.release)
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("unexpected errors: %v %v", errs[0], errs[1])
	}
	if got := f.generator.calls.Load(); got != 1 {
		t.Fatalf("expected one generator call, got %d", got)
	}
	if len(results[0]) != len(results[1]) || results[0][0].ID != results[1][0].ID {
		t.Fatalf("callers should share one batch")
	}
	listed, _ := f.svc.ListQuestions(context.Background(), doc.ID)
	if len(listed) != len(results[0]) {
		t.Fatalf("expected a single batch stored, got %d", len(listed))
	}
}

func TestGenerateDoesNotShareAcrossCounts(t *testing.T) {
	f := newFixture(t, Limits{})
	f.generator.raw = pairsJSON(10)
	f.generator.started = make(chan struct{}, 4)
	f.generator.release = make(chan struct{})
	doc, _ := f.seedDocument(t, 0)

	var wg sync.WaitGroup
	counts := []int{10, 2}
	results := make([][]storage.Question, len(counts))
	errs := make([]error, len(counts))
	for i, count := range counts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.svc.GenerateQuestions(context.Background(), doc.ID, count)
		}()
		<-f.generator.started
	}
	close(f.generator.release)
	wg.Wait()

	for i, count := range counts {
		if errs[i] != nil {
			t.Fatalf("count=%d: unexpected error %v", count, errs[i])
		}
		if len(results[i]) != count {
			t.Fatalf("count=%d caller got %d questions", count, len(results[i]))
		}
	}
	if got := f.generator.calls.Load(); got != 2 {
		t.Fatalf("expected two generator calls, got %d", got)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	f := newFixture(t, Limits{})
	doc, _ := f.seedDocument(t, 4)

	ok, err := f.svc.DeleteDocument(context.Background(), doc.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteDocument: %v %v", ok, err)
	}
	if _, err := f.svc.GetDocument(context.Background(), doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected document gone, got %v", err)
	}
	listed, err := f.svc.ListQuestions(context.Background(), doc.ID)
	if err != nil || len(listed) != 0 {
		t.Fatalf("expected no questions, got %d (%v)", len(listed), err)
	}

	ok, err = f.svc.DeleteDocument(context.Background(), doc.ID)
	if ok || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v %v", ok, err)
	}
}

type recordingStore struct {
	Store
	mu    sync.Mutex
	calls []string
}

func (r *recordingStore) record(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

func (r *recordingStore) DeleteQuestionsByDocument(ctx context.Context, id int64) error {
	r.record("questions")
	return r.Store.DeleteQuestionsByDocument(ctx, id)
}

func (r *recordingStore) DeleteDocument(ctx context.Context, id int64) error {
	r.record("document")
	return r.Store.DeleteDocument(ctx, id)
}

func TestDeleteRemovesQuestionsBeforeDocument(t *testing.T) {
	f := newFixture(t, Limits{})
	doc, _ := f.seedDocument(t, 2)
	rec := &recordingStore{Store: f.store}
	svc := New(rec, f.extractor, f.generator, local.New(f.dir), Limits{})

	if _, err := svc.DeleteDocument(context.Background(), doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if len(rec.calls) != 2 || rec.calls[0] != "questions" || rec.calls[1] != "document" {
		t.Fatalf("unexpected delete order %v", rec.calls)
	}
}

func TestListDocumentsValidation(t *testing.T) {
	f := newFixture(t, Limits{})
	if _, err := f.svc.ListDocuments(context.Background(), 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	docs, err := f.svc.ListDocuments(context.Background(), 77)
	if err != nil || docs == nil || len(docs) != 0 {
		t.Fatalf("expected empty non-nil list, got %v %v", docs, err)
	}
}

func TestUploadThenGenerateScenario(t *testing.T) {
	f := newFixture(t, Limits{})
	f.extractor.text = "The French Revolution began in 1789."
	f.generator.raw = pairsJSON(4)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, UploadInput{
		File: bytes.NewReader(pdfBytes(2048)), MediaType: "application/pdf", FileName: "notes.pdf", SizeBytes: 2048, OwnerID: 1,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Name != "notes.pdf" || doc.FileType != "application/pdf" || doc.FileSize != 2048 || doc.UserID != 1 {
		t.Fatalf("unexpected document %+v", doc)
	}

	questions, err := f.svc.GenerateQuestions(ctx, doc.ID, 3)
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(questions) == 0 || len(questions) > 3 {
		t.Fatalf("expected 1..3 questions, got %d", len(questions))
	}
	for _, q := range questions {
		if q.DocumentID != doc.ID {
			t.Fatalf("question references %d, want %d", q.DocumentID, doc.ID)
		}
	}
}
