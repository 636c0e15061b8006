package rag

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{Endpoint: "http://llm.invalid", APIKey: "k", ChunkSize: 20, ChunkOverlap: 0, TopK: 2}
}

type promptRecorder struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (p *promptRecorder) Generate(_ context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	return p.reply, p.err
}

func (p *promptRecorder) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model not loaded")
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model not loaded")
}

func (failingEmbedder) Dimensions() int { return 64 }
func (failingEmbedder) Close() error    { return nil }

type memRecorder struct {
	mu         sync.Mutex
	ingestions []*models.IngestionRecord
	questions  []*models.QuestionRecord
}

func (m *memRecorder) RecordIngestion(_ context.Context, r *models.IngestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestions = append(m.ingestions, r)
	return nil
}

func (m *memRecorder) RecordQuestion(_ context.Context, r *models.QuestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, r)
	return nil
}

func newTestOrchestrator(t *testing.T, gen llm.Generator, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithGenerator(gen), WithLogger(zap.NewNop())}, opts...)
	o, err := New(testConfig(), embedding.NewHashEmbedder(64), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestNew_RequiresEndpointAndKey(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing both", Config{}},
		{"missing key", Config{Endpoint: "http://x"}},
		{"missing endpoint", Config{APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, embedding.NewHashEmbedder(8))
			var ce *models.ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if ce.Msg != "endpoint and key required" {
				t.Errorf("Msg = %q", ce.Msg)
			}
		})
	}
}

func TestNew_InvalidChunking(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkOverlap = cfg.ChunkSize
	_, err := New(cfg, embedding.NewHashEmbedder(8))
	var ce *models.ConfigurationError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	o, err := New(Config{Endpoint: "http://x", APIKey: "k"}, embedding.NewHashEmbedder(8))
	if err != nil {
		t.Fatal(err)
	}
	st := o.Status()
	if st.ChunkSize != DefaultChunkSize || st.ChunkOverlap != DefaultChunkOverlap || st.TopK != DefaultTopK {
		t.Errorf("defaults not applied: %+v", st)
	}
	if st.State != models.StateEmpty {
		t.Errorf("State = %s", st.State)
	}
}

func TestNew_BadPromptTemplate(t *testing.T) {
	cfg := testConfig()
	cfg.PromptTemplate = "{{.Question"
	_, err := New(cfg, embedding.NewHashEmbedder(8))
	var ce *models.ConfigurationError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestAsk_BeforeIngest(t *testing.T) {
	gen := &promptRecorder{reply: "unused"}
	rec := &memRecorder{}
	o := newTestOrchestrator(t, gen, WithRecorder(rec))
	ans, err := o.Ask(context.Background(), "anything?")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Status != models.AnswerNotReady || ans.Text != "Please load documents first." {
		t.Errorf("got %+v", ans)
	}
	if gen.calls() != 0 {
		t.Error("generator must not be called before ingest")
	}
	if len(rec.questions) != 1 || rec.questions[0].Status != "not_ready" {
		t.Errorf("question not recorded as not_ready: %+v", rec.questions)
	}
}

func TestIngestAndAsk(t *testing.T) {
	gen := &promptRecorder{reply: "  Verbatim answer.\n"}
	rec := &memRecorder{}
	o := newTestOrchestrator(t, gen, WithRecorder(rec))
	ctx := context.Background()

	content := "alpha beta gamma del" + "epsilon zeta eta the" + "iota kappa lambda mu" + "nu xi omicron pi rho"
	res, err := o.Ingest(ctx, models.Document{ID: "doc1", Source: "greek.txt", Content: content})
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 4 || res.DocumentID != "doc1" || res.Dimensions != 64 {
		t.Errorf("IngestResult = %+v", res)
	}

	question := "iota kappa lambda mu"
	ans, err := o.Ask(ctx, question)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Status != models.AnswerGenerated {
		t.Errorf("Status = %v", ans.Status)
	}
	if ans.Text != "  Verbatim answer.\n" {
		t.Errorf("answer altered: %q", ans.Text)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("expected top-2 sources, got %d", len(ans.Sources))
	}
	if ans.Sources[0].Chunk.Text != question {
		t.Errorf("top source = %q", ans.Sources[0].Chunk.Text)
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "Question: "+question) {
		t.Errorf("prompt missing question:\n%s", prompt)
	}
	if !strings.Contains(prompt, ans.Sources[0].Chunk.Text) || !strings.Contains(prompt, ans.Sources[1].Chunk.Text) {
		t.Errorf("prompt missing retrieved chunks:\n%s", prompt)
	}
	if len(rec.ingestions) != 1 || len(rec.questions) != 1 || rec.questions[0].Status != "answered" {
		t.Errorf("records: %d ingestions, %+v", len(rec.ingestions), rec.questions)
	}
}

func TestIngest_GeneratesDocumentID(t *testing.T) {
	o := newTestOrchestrator(t, &promptRecorder{})
	res, err := o.Ingest(context.Background(), models.Document{Content: "some text"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.DocumentID, "text:") {
		t.Errorf("DocumentID = %q", res.DocumentID)
	}
}

func TestIngest_ReplacesPreviousDocument(t *testing.T) {
	gen := &promptRecorder{reply: "ok"}
	o := newTestOrchestrator(t, gen)
	ctx := context.Background()
	if _, err := o.Ingest(ctx, models.Document{ID: "first", Content: strings.Repeat("first document text ", 5)}); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Ingest(ctx, models.Document{ID: "second", Content: "second document only"}); err != nil {
		t.Fatal(err)
	}
	ans, err := o.Ask(ctx, "first document text")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range ans.Sources {
		if s.Chunk.DocumentID != "second" {
			t.Errorf("stale chunk from %q", s.Chunk.DocumentID)
		}
	}
	if st := o.Status(); st.DocumentID != "second" || st.Chunks != 1 {
		t.Errorf("Status = %+v", st)
	}
}

func TestIngest_FailureKeepsPreviousState(t *testing.T) {
	gen := &promptRecorder{reply: "ok"}
	o := newTestOrchestrator(t, gen)
	ctx := context.Background()
	if _, err := o.Ingest(ctx, models.Document{ID: "good", Content: "good content here"}); err != nil {
		t.Fatal(err)
	}

	// Swap in a failing embedder for the next ingest.
	o.provider = embedding.NewProvider(failingEmbedder{})
	_, err := o.Ingest(ctx, models.Document{ID: "bad", Content: "never indexed"})
	var eu *models.EmbeddingUnavailableError
	if !errors.As(err, &eu) {
		t.Fatalf("expected EmbeddingUnavailableError, got %v", err)
	}
	st := o.Status()
	if st.State != models.StateReady || st.DocumentID != "good" {
		t.Errorf("state changed after failed ingest: %+v", st)
	}
}

func TestIngest_FailureFromEmptyStaysEmpty(t *testing.T) {
	o, err := New(testConfig(), failingEmbedder{}, WithGenerator(&promptRecorder{}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Ingest(context.Background(), models.Document{Content: "x"}); err == nil {
		t.Fatal("expected error")
	}
	ans, err := o.Ask(context.Background(), "q")
	if err != nil || ans.Status != models.AnswerNotReady {
		t.Errorf("got %+v, %v", ans, err)
	}
}

func TestIngest_EmptyDocument(t *testing.T) {
	gen := &promptRecorder{reply: "I don't know."}
	o := newTestOrchestrator(t, gen)
	ctx := context.Background()
	res, err := o.Ingest(ctx, models.Document{ID: "empty", Content: ""})
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 0 || !o.Ready() {
		t.Errorf("res=%+v ready=%v", res, o.Ready())
	}
	ans, err := o.Ask(ctx, "anything")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Status != models.AnswerGenerated || len(ans.Sources) != 0 {
		t.Errorf("got %+v", ans)
	}
}

func TestAsk_GenerationErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("server error"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Endpoint = srv.URL
	rec := &memRecorder{}
	o, err := New(cfg, embedding.NewHashEmbedder(16), WithRecorder(rec))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := o.Ingest(ctx, models.Document{ID: "d", Content: "some content to index"}); err != nil {
		t.Fatal(err)
	}
	_, err = o.Ask(ctx, "question?")
	var ge *models.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if ge.StatusCode != 500 || ge.Body != "server error" {
		t.Errorf("got status=%d body=%q", ge.StatusCode, ge.Body)
	}
	if !o.Ready() {
		t.Error("orchestrator should stay Ready after a generation failure")
	}
	if len(rec.questions) != 1 || rec.questions[0].Status != "failed" || rec.questions[0].Error == "" {
		t.Errorf("failure not recorded: %+v", rec.questions)
	}
}

func TestAsk_PlainGeneratorErrorIsWrapped(t *testing.T) {
	gen := &promptRecorder{err: errors.New("offline")}
	o := newTestOrchestrator(t, gen)
	ctx := context.Background()
	_, _ = o.Ingest(ctx, models.Document{ID: "d", Content: "text"})
	_, err := o.Ask(ctx, "q")
	var ge *models.GenerationError
	if !errors.As(err, &ge) {
		t.Errorf("expected GenerationError, got %v", err)
	}
}

func TestAsk_SendsToHTTPEndpoint(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"response":"from endpoint"}`))
	}))
	defer srv.Close()
	cfg := testConfig()
	cfg.Endpoint = srv.URL
	cfg.APIKey = "token"
	o, err := New(cfg, embedding.NewHashEmbedder(16), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_, _ = o.Ingest(ctx, models.Document{ID: "d", Content: "content"})
	ans, err := o.Ask(ctx, "q")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "from endpoint" || gotAuth != "Bearer token" {
		t.Errorf("answer=%q auth=%q", ans.Text, gotAuth)
	}
}

func TestConcurrentAskAndIngest(t *testing.T) {
	gen := &promptRecorder{reply: "ok"}
	o := newTestOrchestrator(t, gen)
	ctx := context.Background()
	if _, err := o.Ingest(ctx, models.Document{ID: "d0", Content: strings.Repeat("seed text ", 10)}); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := o.Ask(ctx, "seed"); err != nil {
				t.Error(err)
			}
		}()
		go func(i int) {
			defer wg.Done()
			doc := models.Document{Content: strings.Repeat("replacement ", i+1)}
			if _, err := o.Ingest(ctx, doc); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	if !o.Ready() {
		t.Error("expected Ready")
	}
}
