package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"interview-insights-go/internal/synthesis"
)

func TestNewWithoutKeyIsAbsent(t *testing.T) {
	if c := New(Config{APIKey: "  "}); c != nil {
		t.Fatalf("expected nil client, got %#v", c)
	}
}

func TestAnalyzeSendsPromptAndJoinsParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		var body generateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		prompt := body.Contents[0].Parts[0].Text
		for _, want := range []string{"Tell me about yourself", "I build things", "Audio Analysis:"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"{\"overall_score\": "},{"text":"8}"}]}}]}`)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "secret", Endpoint: srv.URL + "/v1beta/models/gemini:generateContent", Timeout: time.Second})
	got, err := c.Analyze(context.Background(), synthesis.Request{
		Question:   "Tell me about yourself",
		Transcript: "I build things",
		AudioText:  "Audio Analysis:\n- Word Count: 3\n",
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got != `{"overall_score": 8}` {
		t.Fatalf("Analyze() = %q", got)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api error", http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`, "API key not valid"},
		{"plain 5xx", http.StatusBadGateway, `bad gateway`, "http 502"},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "SAFETY"},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, "no candidates"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			_, err := New(Config{APIKey: "k", Endpoint: srv.URL}).Analyze(context.Background(), synthesis.Request{})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestBuildPromptOmitsEmptySections(t *testing.T) {
	p := BuildPrompt(synthesis.Request{Question: "Q", Transcript: "T"})
	if strings.Contains(p, "Video Analysis") || strings.Contains(p, "Audio Analysis") {
		t.Fatalf("unexpected metric sections in prompt:\n%s", p)
	}
}
