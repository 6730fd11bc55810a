package responses

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}

func TestCreateResponseSuccess(t *testing.T) {
	t.Parallel()

	var gotReq CreateRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}

		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}

		resp := Response{
			ID:        "resp_1",
			Object:    "response",
			CreatedAt: time.Unix(1_700_000_000, 0).Unix(),
			Model:     "gpt-4.1",
			Status:    "completed",
			Output: []OutputItem{
				{ID: "msg_1", Type: "message", Role: "assistant"},
			},
			Usage: &Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5},
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	resp, err := client.CreateResponse(context.Background(), &CreateRequest{
		Model: "gpt-4.1",
		Input: json.RawMessage(`"hi"`),
	})
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if gotReq.Model != "gpt-4.1" {
		t.Errorf("upstream saw model %q", gotReq.Model)
	}
	if resp.ID != "resp_1" || resp.Status != "completed" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateResponseProviderError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"no such model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.CreateResponse(context.Background(), &CreateRequest{
		Model: "nope",
		Input: json.RawMessage(`"hi"`),
	})
	if err == nil {
		t.Fatalf("expected provider error")
	}
}

func TestGetResponsePath(t *testing.T) {
	t.Parallel()

	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp_42","object":"response","status":"completed"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	resp, err := client.GetResponse(context.Background(), "resp_42")
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}
	if gotPath != "/v1/responses/resp_42" {
		t.Errorf("unexpected path: %q", gotPath)
	}
	if resp.ID != "resp_42" {
		t.Errorf("unexpected response id: %q", resp.ID)
	}
}

func TestCreateResponseStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Fatalf("stream flag not set on upstream request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		events := []string{
			`{"type":"response.created","response":{"id":"resp_9","status":"in_progress"}}`,
			`{"type":"response.output_text.delta","item_id":"item_1","delta":"hel"}`,
			`{"type":"response.completed","response":{"id":"resp_9","status":"completed"}}`,
		}
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	stream, err := client.CreateResponseStream(context.Background(), &CreateRequest{
		Model: "gpt-4.1",
		Input: json.RawMessage(`"hi"`),
	})
	if err != nil {
		t.Fatalf("CreateResponseStream failed: %v", err)
	}

	var types []string
	for res := range stream {
		if res.Err != nil {
			t.Fatalf("stream error: %v", res.Err)
		}
		types = append(types, res.Event.Type)
	}

	want := []string{"response.created", "response.output_text.delta", "response.completed"}
	if len(types) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(types), len(want), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestCreateResponseStreamCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, `data: {"type":"response.created","response":{"id":"resp_9"}}`+"\n\n")
		flusher.Flush()
		<-release // hold the stream open
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.CreateResponseStream(ctx, &CreateRequest{
		Model: "gpt-4.1",
		Input: json.RawMessage(`"hi"`),
	})
	if err != nil {
		t.Fatalf("CreateResponseStream failed: %v", err)
	}

	// Consume the first event, then cancel.
	select {
	case res := <-stream:
		if res.Err != nil {
			t.Fatalf("stream error: %v", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no first event")
	}

	cancel()

	select {
	case _, open := <-stream:
		if open {
			// A final error result is acceptable; the channel must
			// close right after.
			if _, stillOpen := <-stream; stillOpen {
				t.Fatalf("stream did not close after cancellation")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not close after cancellation")
	}
}
