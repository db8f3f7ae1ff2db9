package comfy_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"darkroom/internal/config"
	"darkroom/internal/logging"
	"darkroom/internal/services/comfy"
	"darkroom/internal/testsupport"
	"darkroom/internal/workflows"
)

func fastComfyConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Comfy.BaseURL = baseURL
	cfg.Comfy.RetryDelay = 1
	cfg.Comfy.PollInterval = 1
	cfg.Comfy.AwaitTimeout = 2
	return cfg
}

func testGraph() workflows.Graph {
	return workflows.Graph{"3": {"inputs": map[string]any{"seed": int64(42)}}}
}

func TestSubmitRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prompt" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Prompt workflows.Graph `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode submit body: %v", err)
		}
		if body.Prompt == nil {
			t.Error("submit body missing prompt graph")
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"prompt_id":"abc-123"}`)
	}))
	defer server.Close()

	client := comfy.New(fastComfyConfig(t, server.URL), logging.NewNop())
	jobID, err := client.Submit(context.Background(), testGraph())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if jobID != "abc-123" {
		t.Fatalf("jobID = %q", jobID)
	}
	if calls.Load() != 3 {
		t.Fatalf("server saw %d submits, want 3", calls.Load())
	}
}

func TestSubmitGivesUpAfterBoundedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := comfy.New(fastComfyConfig(t, server.URL), logging.NewNop())
	if _, err := client.Submit(context.Background(), testGraph()); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if calls.Load() != 3 {
		t.Fatalf("server saw %d submits, want exactly 3", calls.Load())
	}
}

func TestAwaitCompletionOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		history string
		want    comfy.Outcome
	}{
		{
			name:    "completed",
			history: `{"job-1":{"status":{"completed":true}}}`,
			want:    comfy.OutcomeCompleted,
		},
		{
			name:    "execution error",
			history: `{"job-1":{"status":{"completed":false,"exec_info":{"messages":["execution Error in node 5"]}}}}`,
			want:    comfy.OutcomeFailed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/history/job-1" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				fmt.Fprint(w, tc.history)
			}))
			defer server.Close()

			client := comfy.New(fastComfyConfig(t, server.URL), logging.NewNop())
			if got := client.AwaitCompletion(context.Background(), "job-1"); got != tc.want {
				t.Fatalf("outcome = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAwaitCompletionTimesOutWhilePending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server never learns about the job.
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := comfy.New(fastComfyConfig(t, server.URL), logging.NewNop())
	if got := client.AwaitCompletion(context.Background(), "job-1"); got != comfy.OutcomeTimedOut {
		t.Fatalf("outcome = %v, want timed out", got)
	}
}

func TestAwaitTreatsEmptyHistoryAsPending(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"job-1":{"status":{"completed":true}}}`)
	}))
	defer server.Close()

	cfg := fastComfyConfig(t, server.URL)
	cfg.Comfy.AwaitTimeout = 5
	client := comfy.New(cfg, logging.NewNop())
	if got := client.AwaitCompletion(context.Background(), "job-1"); got != comfy.OutcomeCompleted {
		t.Fatalf("outcome = %v, want completed", got)
	}
	if calls.Load() < 2 {
		t.Fatalf("server saw %d polls, want at least 2", calls.Load())
	}
}

func TestHealthReportsUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := comfy.New(fastComfyConfig(t, server.URL), logging.NewNop())

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health against live server: %v", err)
	}
	server.Close()
	if err := client.Health(context.Background()); err == nil {
		t.Fatal("Health should fail once the server is gone")
	}
}
