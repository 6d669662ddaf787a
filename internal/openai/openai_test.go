package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ctxpkg "github.com/stupiduntilnot/termagent/internal/context"
)

var hi = []ctxpkg.Message{{Role: "user", Content: "hi"}}

func chatServer(t *testing.T, resp map[string]any, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestChatCompletion_WithUsage(t *testing.T) {
	var seen map[string]any
	server := chatServer(t, map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": "Hello!"}},
		},
		"usage": map[string]any{
			"prompt_tokens":     42,
			"completion_tokens": 7,
		},
	}, &seen)
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", 5*time.Second)
	result, err := client.ChatCompletion(context.Background(), hi)
	if err != nil {
		t.Fatal(err)
	}

	if result.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", result.Content)
	}
	if result.InputTokens != 42 {
		t.Errorf("expected 42 input tokens, got %d", result.InputTokens)
	}
	if result.OutputTokens != 7 {
		t.Errorf("expected 7 output tokens, got %d", result.OutputTokens)
	}
	if seen["model"] != "test-model" {
		t.Errorf("unexpected model in request: %v", seen["model"])
	}
}

func TestChatCompletion_EmptyChoices(t *testing.T) {
	server := chatServer(t, map[string]any{
		"choices": []map[string]any{},
		"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 0},
	}, nil)
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", 5*time.Second)
	result, err := client.ChatCompletion(context.Background(), hi)
	if err != nil {
		t.Fatal(err)
	}

	if result.Content != "(empty model response)" {
		t.Errorf("expected empty model response fallback, got %q", result.Content)
	}
	if result.InputTokens != 10 {
		t.Errorf("expected 10 input tokens, got %d", result.InputTokens)
	}
}

func TestChatCompletion_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, "test-model", 5*time.Second)
	_, err := client.ChatCompletion(context.Background(), hi)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestLMStudio_AutoSelectsModelAndTemperature(t *testing.T) {
	var seen map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models":
			json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data": []map[string]any{
					{"id": "qwen2.5-7b-instruct", "object": "model"},
					{"id": "llama-3", "object": "model"},
				},
			})
		case "/v1/chat/completions":
			if got := r.Header.Get("Authorization"); got != "Bearer lm-studio" {
				t.Errorf("unexpected auth header %q", got)
			}
			_ = json.NewDecoder(r.Body).Decode(&seen)
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"role": "assistant", "content": "[DONE]\nok\n[/DONE]"}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewLMStudio(server.URL+"/v1", "", 5*time.Second)
	result, err := client.ChatCompletion(context.Background(), hi)
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != "[DONE]\nok\n[/DONE]" {
		t.Errorf("unexpected content %q", result.Content)
	}
	if client.Model() != "qwen2.5-7b-instruct" {
		t.Errorf("expected first listed model, got %q", client.Model())
	}
	if seen["model"] != "qwen2.5-7b-instruct" {
		t.Errorf("unexpected model in request: %v", seen["model"])
	}
	if temp, _ := seen["temperature"].(float64); temp < 0.69 || temp > 0.71 {
		t.Errorf("unexpected temperature %v", seen["temperature"])
	}
}

func TestEnsureModel_NoModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
	}))
	defer server.Close()

	client := NewClient("k", server.URL, "", 5*time.Second)
	if _, err := client.EnsureModel(context.Background()); err == nil {
		t.Fatal("expected auto-select failure")
	}
}

func TestChatCompletion_ContextCancelled(t *testing.T) {
	server := chatServer(t, map[string]any{"choices": []any{}}, nil)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewClient("k", server.URL, "m", 5*time.Second)
	if _, err := client.ChatCompletion(ctx, hi); err == nil {
		t.Fatal("expected cancelled request to fail")
	}
}
