package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"euno-analytics-be/pkg/llm"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model":   got.Model,
			"message": map[string]string{"role": "assistant", "content": `{"intent":"answerable"}`},
			"done":    true,
		})
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "llama3")
	resp, err := p.Chat(context.Background(),
		[]llm.Message{{Role: "system", Content: "be brief"}, {Role: "model", Content: "ok"}},
		llm.WithJSONMode(), llm.WithMaxTokens(64), llm.WithModel("qwen2.5"),
	)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp != `{"intent":"answerable"}` {
		t.Errorf("unexpected response: %s", resp)
	}
	if got.Model != "qwen2.5" {
		t.Errorf("model override not applied: %s", got.Model)
	}
	if got.Format != "json" {
		t.Errorf("json mode not applied: %q", got.Format)
	}
	if got.Options == nil || got.Options.NumPredict != 64 {
		t.Errorf("max tokens not applied: %+v", got.Options)
	}
	if got.Messages[1].Role != "assistant" {
		t.Errorf("model role should map to assistant, got %s", got.Messages[1].Role)
	}
}

func TestOllamaProvider_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte("nope"))
		}))

		_, err := NewOllamaProvider(server.URL, "llama3").Generate(context.Background(), "hi")
		server.Close()

		if err == nil {
			t.Fatalf("status %d should error", tt.status)
		}
		if llm.IsTransient(err) != tt.transient {
			t.Errorf("status %d: transient = %v, want %v", tt.status, !tt.transient, tt.transient)
		}
	}
}

func TestOllamaProvider_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	_, err := NewOllamaProvider(server.URL, "llama3").Generate(ctx, "hi")
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if !llm.IsTransient(err) {
		t.Errorf("deadline should be transient: %v", err)
	}
}
