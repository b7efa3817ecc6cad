package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ethiscan/orchestrator/internal/config"
	"github.com/ethiscan/orchestrator/internal/types"
)

// OpenAIAdapter speaks the chat-completions dialect. Vision support is a
// deployment property (not every chat model takes images), so it comes
// from config rather than being hardcoded.
type OpenAIAdapter struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewOpenAIAdapter(cfg config.ProviderConfig, client *http.Client) *OpenAIAdapter {
	return &OpenAIAdapter{cfg: cfg, client: client}
}

func (a *OpenAIAdapter) Name() string         { return "openai" }
func (a *OpenAIAdapter) SupportsVision() bool { return a.cfg.Vision }

func (a *OpenAIAdapter) Call(ctx context.Context, req *types.AnalysisRequest) (*Result, error) {
	start := time.Now()

	content := []openaiContentPart{{Type: "text", Text: buildPromptText(req)}}
	if req.Image != nil {
		content = append(content, openaiContentPart{
			Type: "image_url",
			ImageURL: &openaiImageURL{
				URL: "data:" + req.Image.MimeType + ";base64," + req.Image.Base64,
			},
		})
	}

	body := openaiRequest{
		Model:       a.cfg.Model,
		Messages:    []openaiMessage{{Role: "user", Content: content}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Code: types.ErrUnknown, Message: "marshal openai request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Code: types.ErrUnknown, Message: "create openai request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	for k, v := range a.cfg.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: types.ErrNetwork, Message: "read openai response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, string(respBody))
	}

	var parsed openaiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &Error{Code: types.ErrProvider, Message: "unmarshal openai response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &Error{Code: types.ErrProvider, Message: "openai returned no choices"}
	}

	model := parsed.Model
	if model == "" {
		model = a.cfg.Model
	}
	return &Result{
		Text:             parsed.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
		LatencyMs:        time.Since(start).Milliseconds(),
	}, nil
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string              `json:"role"`
	Content []openaiContentPart `json:"content"`
}

type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
