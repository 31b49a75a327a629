package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientSelectsProvider(t *testing.T) {
	tests := []struct {
		provider Provider
		want     string
		wantErr  bool
	}{
		{provider: ProviderAnthropic, want: "anthropic"},
		{provider: "", want: "anthropic"},
		{provider: ProviderOpenAI, want: "openai"},
		{provider: "gemini", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			client, err := NewClient(tt.provider, "key", "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && client.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", client.Name(), tt.want)
			}
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	client, err := NewClient(ProviderAnthropic, "", "")
	if err == nil {
		t.Error("expected error for empty Anthropic key")
	}
	if client != nil {
		t.Errorf("client = %#v, want untyped nil", client)
	}
	if _, err := NewClient(ProviderOpenAI, "", ""); err == nil {
		t.Error("expected error for empty OpenAI key")
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var got struct {
		Model     string        `json:"model"`
		MaxTokens int           `json:"max_tokens"`
		Messages  []ChatMessage `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"origin\":\"WAW\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClientWithBaseURL("key", srv.URL, "gpt-4o-mini")
	if err != nil {
		t.Fatalf("NewOpenAIClientWithBaseURL: %v", err)
	}

	resp, err := client.Complete(context.Background(), &CompletionRequest{
		Messages:  UserMessage("Warsaw to Barcelona"),
		MaxTokens: 500,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if got.Model != "gpt-4o-mini" || got.MaxTokens != 500 {
		t.Errorf("request model=%q max_tokens=%d", got.Model, got.MaxTokens)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "Warsaw to Barcelona" {
		t.Errorf("request messages = %+v", got.Messages)
	}
	if resp.Content != `{"origin":"WAW"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.TokensIn != 12 || resp.TokensOut != 5 || resp.StopReason != "stop" {
		t.Errorf("usage = %d/%d stop=%q", resp.TokensIn, resp.TokensOut, resp.StopReason)
	}
}

func TestOpenAIClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit"}}`))
	}))
	defer srv.Close()

	client, _ := NewOpenAIClientWithBaseURL("key", srv.URL, "")
	if _, err := client.Complete(context.Background(), &CompletionRequest{Messages: UserMessage("hi")}); err == nil {
		t.Fatal("expected error on 429")
	}
}
