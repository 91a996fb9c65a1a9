package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crashlens/crashlens/pkg/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.LLMConfig{
		BaseURL:         baseURL + "/v1",
		APIKey:          "test",
		Model:           "test-model",
		EmbeddingModel:  "test-embed",
		Temperature:     0.1,
		TimeoutSec:      5,
		EmbedTimeoutSec: 5,
	})
}

func chatResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

func TestChat(t *testing.T) {
	var captured struct {
		Model          string `json:"model"`
		ResponseFormat *struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse(`{"root_cause":"x"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	got, err := client.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "you are a classifier"},
		{Role: RoleUser, Content: "the crash log"},
	}, Options{JSONMode: true})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if got != `{"root_cause":"x"}` {
		t.Errorf("Chat() = %q", got)
	}
	if captured.Model != "test-model" {
		t.Errorf("request model = %q, want configured default", captured.Model)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Errorf("request did not ask for JSON mode: %+v", captured.ResponseFormat)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != RoleSystem {
		t.Errorf("request messages = %+v", captured.Messages)
	}
}

func TestChat_ModelOverride(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse("ok"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{Model: "override"}); err != nil {
		t.Fatal(err)
	}
	if gotModel != "override" {
		t.Errorf("request model = %q, want override", gotModel)
	}
}

func TestChat_BackendUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)
	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	if err == nil {
		t.Fatal("Chat() succeeded against a dead backend")
	}
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("error %v is not ErrBackendUnavailable", err)
	}
}

func TestChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, delta := range []string{`{"root_`, `cause":`, `"x"}`} {
			chunk, _ := json.Marshal(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion.chunk",
				"model":  "test-model",
				"choices": []map[string]any{
					{"index": 0, "delta": map[string]string{"content": delta}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	var chunks []string
	got, err := client.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{}, func(chunk string) {
		chunks = append(chunks, chunk)
	})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}

	if got != `{"root_cause":"x"}` {
		t.Errorf("accumulated stream = %q", got)
	}
	if len(chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(chunks))
	}
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test-embed" {
			t.Errorf("embedding model = %q", req.Model)
		}
		if len(req.Input) != 1 || req.Input[0] != "some rule text" {
			t.Errorf("embedding input = %v", req.Input)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
			"model": "test-embed",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	vec, err := client.Embed(context.Background(), "some rule text")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("Embed() = %v", vec)
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "qwen3:4b", "object": "model"},
				{"id": "nomic-embed-text", "object": "model"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error: %v", err)
	}
	if len(models) != 2 || models[0] != "qwen3:4b" {
		t.Errorf("ListModels() = %v", models)
	}
}
