package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var gotAuth, gotPath string
	var gotInputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotInputs = req.Input
		w.Header().Set("Content-Type", "application/json")
		// Return data out of order to check reordering by index.
		_, _ = w.Write([]byte(`{"object":"list","model":"test","data":[
			{"object":"embedding","index":1,"embedding":[0,2]},
			{"object":"embedding","index":0,"embedding":[3,0]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "test", Dimensions: 2})
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer k" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if !strings.HasSuffix(gotPath, "/embeddings") {
		t.Errorf("path = %q", gotPath)
	}
	if len(gotInputs) != 2 {
		t.Errorf("inputs = %v", gotInputs)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors not ordered or normalized: %v", vecs)
	}
}

func TestOpenAIEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()
	e, _ := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "test"})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error")
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{}); err == nil {
		t.Error("expected error without api key")
	}
}

func TestNewOpenAIEmbedder_DefaultDimensions(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimensions() != 1536 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
}
