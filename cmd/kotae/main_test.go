package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"what is this", "-file", "notes.txt"},
			expected: []string{"-file", "notes.txt", "what is this"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-file", "notes.txt", "what is this"},
			expected: []string{"-file", "notes.txt", "what is this"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what is this"},
			expected: []string{"what is this"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"who", "wrote", "it", "--sources"},
			expected: []string{"--sources", "who", "wrote", "it"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"summary"}, "summary"},
		{"multiple words", []string{"who", "wrote", "it"}, "who wrote it"},
		{"quoted phrase", []string{"who wrote it"}, "who wrote it"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuestion(tt.args); got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  history_path: "history.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPathAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	configPath := filepath.Join(dir, "custom.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
llm:
  endpoint_url: "http://from-file"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvEndpointURL, "http://from-env")
	t.Setenv(config.EnvAPIKey, "secret")

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.LLM.EndpointURL != "http://from-env" || cfg.LLM.APIKey != "secret" {
		t.Errorf("env not applied: %+v", cfg.LLM)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	chdir(t, t.TempDir())
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestNewEmbedder(t *testing.T) {
	logger := zap.NewNop()

	emb, err := newEmbedder(config.EmbeddingConfig{Provider: config.ProviderHash, Dimensions: 12}, logger)
	if err != nil {
		t.Fatal(err)
	}
	if emb.Dimensions() != 12 {
		t.Errorf("hash dimensions: got %d", emb.Dimensions())
	}

	missing := filepath.Join(t.TempDir(), "missing.onnx")
	emb, err = newEmbedder(config.EmbeddingConfig{Provider: config.ProviderONNX, ModelPath: missing, Dimensions: 8, Fallback: true}, logger)
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if emb.Dimensions() != 8 {
		t.Errorf("fallback dimensions: got %d", emb.Dimensions())
	}

	_, err = newEmbedder(config.EmbeddingConfig{Provider: config.ProviderONNX, ModelPath: missing, Dimensions: 8}, logger)
	var ee *models.EmbeddingUnavailableError
	if !errors.As(err, &ee) {
		t.Errorf("expected EmbeddingUnavailableError, got %v", err)
	}

	_, err = newEmbedder(config.EmbeddingConfig{Provider: config.ProviderOpenAI}, logger)
	if !errors.As(err, &ee) {
		t.Errorf("openai without key: expected EmbeddingUnavailableError, got %v", err)
	}

	_, err = newEmbedder(config.EmbeddingConfig{Provider: "word2vec"}, logger)
	var ce *models.ConfigurationError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.EndpointURL = "http://llm.invalid"
	cfg.LLM.APIKey = "k"
	cfg.Embedding.Provider = config.ProviderHash
	cfg.Embedding.Dimensions = 16
	cfg.Storage.HistoryPath = filepath.Join(t.TempDir(), "history.db")
	return cfg
}

func TestInitializeComponents(t *testing.T) {
	cfg := testConfig(t)
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ans, err := c.Ask(context.Background(), "anything?")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Status != models.AnswerNotReady {
		t.Errorf("expected not-ready answer, got %+v", ans)
	}

	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte("# Title\n\nSome body text about kotae."), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := c.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 1 || res.Dimensions != 16 {
		t.Errorf("ingest result: %+v", res)
	}

	report, err := localStatus(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if report.History == nil || report.History.Ingestions != 1 || report.History.Questions != 1 {
		t.Errorf("history: %+v", report.History)
	}
}

func TestInitializeComponents_missingCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""
	_, err := initializeComponents(cfg, zap.NewNop())
	var ce *models.ConfigurationError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestInitWorkspace(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "conf", "config.yaml")
	envPath := filepath.Join(dir, ".env")

	var out bytes.Buffer
	configured, err := initWorkspace(&out, configPath, envPath)
	if err != nil {
		t.Fatal(err)
	}
	if configured {
		t.Error("fresh .env should not count as configured")
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config not created: %v", err)
	}
	if !strings.Contains(out.String(), "needs to be configured") {
		t.Errorf("missing warning:\n%s", out.String())
	}

	if err := os.WriteFile(envPath, []byte("LLM_ENDPOINT_URL=http://x\nLLM_API_KEY=y\n"), 0600); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	configured, err = initWorkspace(&out, configPath, envPath)
	if err != nil {
		t.Fatal(err)
	}
	if !configured {
		t.Errorf("expected configured:\n%s", out.String())
	}
	if strings.Contains(out.String(), "Created") {
		t.Errorf("existing files should not be recreated:\n%s", out.String())
	}
}
