// Package gemini implements llm.Provider on top of the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/user/scriptdesk/pkg/llm"
)

// Client implements the llm.Provider interface for Gemini models.
type Client struct {
	config *llm.Config
	client *genai.Client
}

// New creates a Gemini client. BaseURL is optional and only needed for
// proxies or tests.
func New(ctx context.Context, config *llm.Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini api key missing")
	}
	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Client{config: config, client: client}, nil
}

// Complete sends a generateContent request and returns the full response.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	contents, system := convertMessages(req)
	if len(contents) == 0 {
		return nil, errors.New("no contents")
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(system)}}
	}
	if n := req.MaxTokens; n > 0 {
		cfg.MaxOutputTokens = int32(n)
	} else if c.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if req.Temperature != nil || c.config.Temperature != 0 {
		cfg.Temperature = genai.Ptr(req.TemperatureOr(c.config.Temperature))
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("generate content: %w", llm.ErrEmptyResponse)
	}

	out := &llm.Response{
		Content:      resp.Text(),
		FinishReason: string(resp.Candidates[0].FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// convertMessages maps chat messages to Gemini contents. System messages
// are folded into the system instruction.
func convertMessages(req *llm.Request) ([]*genai.Content, string) {
	var system []string
	if req.System != "" {
		system = append(system, req.System)
	}
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}
