package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatWithOptions(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("request = %+v, want model and 2 messages", req)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "你好"}},
			},
			"usage": map[string]int{"total_tokens": 12},
		})
	}))
	defer srv.Close()

	client := NewChatClient(&ChatConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
	})

	out, err := client.ChatWithOptions(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
	}, 0.3, 100)
	if err != nil {
		t.Fatalf("ChatWithOptions error: %v", err)
	}
	if out != "你好" {
		t.Fatalf("content = %q, want 你好", out)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %q, want default chat path", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("auth = %q, want bearer token", gotAuth)
	}
}

func TestChatWithOptions_CustomPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	client := NewChatClient(&ChatConfig{
		APIKey:  "k",
		BaseURL: srv.URL + "/",
		Path:    "/api/v2/chat",
	})
	if _, err := client.ChatWithOptions(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0, 0); err != nil {
		t.Fatalf("ChatWithOptions error: %v", err)
	}
	if gotPath != "/api/v2/chat" {
		t.Fatalf("path = %q, want custom path", gotPath)
	}
}

func TestChatWithOptions_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewChatClient(&ChatConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := client.ChatWithOptions(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0, 0); err == nil {
		t.Fatal("non-200 response should return error")
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q, want /v1/embeddings", r.URL.Path)
		}
		// data 乱序返回，客户端按 index 归位
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.3, 0.4}},
				{"index": 0, "embedding": []float32{0.1, 0.2}},
			},
		})
	}))
	defer srv.Close()

	client := NewEmbedClient(&EmbedConfig{APIKey: "k", BaseURL: srv.URL})
	vecs, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("vectors = %d, want 2", len(vecs))
	}
	if vecs[0][0] != 0.1 || vecs[1][0] != 0.3 {
		t.Fatalf("vectors not ordered by index: %v", vecs)
	}

	empty, err := client.Embed(context.Background(), nil)
	if err != nil || empty != nil {
		t.Fatalf("empty input should be a no-op, got %v err=%v", empty, err)
	}
}

func TestCleanJSONResponse(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}

	for _, tc := range cases {
		if got := cleanJSONResponse(tc.in); got != tc.want {
			t.Errorf("cleanJSONResponse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
