// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient(&ClientConfig{BaseURL: url}, nil)
}

// =============================================================================
// HEALTH CHECK TESTS
// =============================================================================

func TestCheckRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if err := client.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning() = %v, want nil", err)
	}
}

func TestCheckRunning_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.CheckRunning(context.Background())
	if err == nil {
		t.Fatal("CheckRunning() = nil, want error on 500")
	}
	if !IsServerError(err) {
		t.Errorf("error %v is not a server error", err)
	}
}

func TestCheckRunning_Unreachable(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	err := client.CheckRunning(context.Background())
	if !IsNotRunning(err) {
		t.Errorf("CheckRunning() = %v, want not-running error", err)
	}
}

// =============================================================================
// MODEL LIST TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ListModelsResponse{
			Models: []ModelInfo{
				{Name: "llama3.2:3b", Size: 2048},
				{Name: "qwen2.5:7b", Size: 4096},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}
	if models[0].Name != "llama3.2:3b" {
		t.Errorf("models[0].Name = %q", models[0].Name)
	}
}

func TestListModels_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ListModelsResponse{Models: []ModelInfo{}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 0 {
		t.Errorf("len(models) = %d, want 0", len(models))
	}
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

// streamBody builds an NDJSON body from chat response lines.
func streamBody(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestChatStream(t *testing.T) {
	body := streamBody(
		`{"model":"llama3.2","message":{"role":"assistant","content":"Hel"},"done":false}`,
		`{"model":"llama3.2","message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"eval_count":12,"eval_duration":1000000000,"total_duration":1500000000}`,
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("Stream = false, want true")
		}
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	var content strings.Builder
	var final StreamChunk
	err := client.ChatStream(context.Background(), ChatRequest{
		Model:    "llama3.2",
		Messages: []Message{NewUserMessage("hi")},
	}, func(chunk StreamChunk) {
		content.WriteString(chunk.Content)
		if chunk.Done {
			final = chunk
		}
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	if content.String() != "Hello" {
		t.Errorf("accumulated content = %q, want 'Hello'", content.String())
	}
	if final.EvalCount != 12 {
		t.Errorf("EvalCount = %d, want 12", final.EvalCount)
	}
	if final.EvalDuration != int64(time.Second) {
		t.Errorf("EvalDuration = %d", final.EvalDuration)
	}
}

func TestChatStream_SkipsMalformedLines(t *testing.T) {
	body := streamBody(
		`{"message":{"content":"A"},"done":false}`,
		`{not valid json`,
		`{"message":{"content":"B"},"done":false}`,
		``,
		`{"message":{"content":"C"},"done":true}`,
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	var content strings.Builder
	err := client.ChatStream(context.Background(), ChatRequest{Model: "m"}, func(chunk StreamChunk) {
		content.WriteString(chunk.Content)
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v, want nil (malformed lines skipped)", err)
	}
	if content.String() != "ABC" {
		t.Errorf("content = %q, want 'ABC' with malformed line skipped", content.String())
	}
}

func TestChatStream_Cancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write([]byte(`{"message":{"content":"one"},"done":false}` + "\n"))
		flusher.Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan error, 1)
	go func() {
		got <- client.ChatStream(ctx, ChatRequest{Model: "m"}, func(chunk StreamChunk) {
			if chunk.Content == "one" {
				cancel()
			}
		})
	}()

	select {
	case err := <-got:
		if err != context.Canceled {
			t.Errorf("ChatStream() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancellation")
	}
}

func TestChatStream_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiError{Error: "model 'nope' not found"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.ChatStream(context.Background(), ChatRequest{Model: "nope"}, func(StreamChunk) {})
	if !IsServerError(err) {
		t.Fatalf("ChatStream() = %v, want server error", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error %q does not carry server message", err.Error())
	}
}

// =============================================================================
// GENERATE TESTS
// =============================================================================

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("Stream = true, want false for generate")
		}
		if len(req.Images) != 1 {
			t.Errorf("len(Images) = %d, want 1", len(req.Images))
		}
		json.NewEncoder(w).Encode(GenerateResponse{
			Model:    req.Model,
			Response: "a cat on a windowsill",
			Done:     true,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Generate(context.Background(), GenerateRequest{
		Model:  "llava",
		Prompt: "Describe this image",
		Images: []string{"aGVsbG8="},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Response != "a cat on a windowsill" {
		t.Errorf("Response = %q", resp.Response)
	}
}

// =============================================================================
// OPTIONS SERIALIZATION TESTS
// =============================================================================

func TestOptions_OmitsUnsetFields(t *testing.T) {
	payload, err := json.Marshal(ChatRequest{
		Model:   "m",
		Options: &Options{Temperature: 0.7},
	})
	if err != nil {
		t.Fatal(err)
	}

	s := string(payload)
	if !strings.Contains(s, `"temperature":0.7`) {
		t.Errorf("payload %s missing temperature", s)
	}
	for _, field := range []string{"top_k", "top_p", "seed", "num_ctx", "stop"} {
		if strings.Contains(s, field) {
			t.Errorf("payload %s contains unset field %q", s, field)
		}
	}
}
