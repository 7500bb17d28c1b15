package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/genai"

	"github.com/user/scriptdesk/pkg/llm"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), &llm.Config{Model: "gemini-2.5-flash"}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestConvertMessages(t *testing.T) {
	req := &llm.Request{
		System: "You write news scripts.",
		Messages: []llm.Message{
			{Role: "system", Content: "Keep it short."},
			{Role: "user", Content: "topic"},
			{Role: "assistant", Content: "draft"},
		},
	}
	contents, system := convertMessages(req)
	if system != "You write news scripts.\n\nKeep it short." {
		t.Errorf("unexpected system instruction %q", system)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != string(genai.RoleUser) || contents[1].Role != string(genai.RoleModel) {
		t.Errorf("unexpected roles %q, %q", contents[0].Role, contents[1].Role)
	}
	if contents[0].Parts[0].Text != "topic" {
		t.Errorf("unexpected text %q", contents[0].Parts[0].Text)
	}
}

func TestClientProviderInterface(t *testing.T) {
	var _ llm.Provider = (*Client)(nil)
}

// fakeGemini answers generateContent calls with body and records the
// generation config of each request.
func fakeGemini(t *testing.T, body string) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var seen []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			GenerationConfig map[string]any `json:"generationConfig"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		seen = append(seen, req.GenerationConfig)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &seen
}

const okCandidate = `{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]},"finishReason":"STOP"}]}`

func TestCompleteSendsZeroTemperature(t *testing.T) {
	server, seen := fakeGemini(t, okCandidate)
	c, err := New(context.Background(), &llm.Config{BaseURL: server.URL, APIKey: "k", Model: "gemini-2.5-flash", Temperature: 0.7})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Complete(context.Background(), llm.Prompt("agenda", 100, 0))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok" {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if len(*seen) != 1 {
		t.Fatalf("expected one request, got %d", len(*seen))
	}
	temp, ok := (*seen)[0]["temperature"]
	if !ok || temp != float64(0) {
		t.Errorf("expected temperature 0 on the wire, got %v (present=%v)", temp, ok)
	}
}

func TestCompleteNoCandidates(t *testing.T) {
	server, _ := fakeGemini(t, `{"candidates":[]}`)
	c, err := New(context.Background(), &llm.Config{BaseURL: server.URL, APIKey: "k", Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Complete(context.Background(), llm.Prompt("x", 0, 0)); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}
