package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbedCallsEmbeddingsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "tiny" {
			t.Errorf("unexpected model %v", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,0.5,0.75]}],"model":"tiny"}`))
	}))
	defer srv.Close()

	t.Setenv("RAGCORE_OPENAI_KEY", "test-key")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "RAGCORE_OPENAI_KEY", Model: "tiny"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Dimension() != 0 {
		t.Fatalf("dimension known before first call: %d", c.Dimension())
	}
	v, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 3 || v[0] != 0.25 || v[2] != 0.75 {
		t.Fatalf("unexpected vector %v", v)
	}
	if c.Dimension() != 3 {
		t.Fatalf("expected dimension 3, got %d", c.Dimension())
	}
}

func TestEmbedReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model offline","type":"server_error"}}`))
	}))
	defer srv.Close()

	t.Setenv("RAGCORE_OPENAI_KEY", "test-key")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "RAGCORE_OPENAI_KEY"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("RAGCORE_OPENAI_KEY", "")
	if _, err := NewClient(Config{APIKeyEnv: "RAGCORE_OPENAI_KEY"}); err == nil {
		t.Fatal("expected missing key error")
	}
}
