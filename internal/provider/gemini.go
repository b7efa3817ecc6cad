package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethiscan/orchestrator/internal/config"
	"github.com/ethiscan/orchestrator/internal/types"
)

// GeminiAdapter calls the Google Generative Language API. It is the
// canonical provider for image-bearing analysis requests.
type GeminiAdapter struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewGeminiAdapter(cfg config.ProviderConfig, client *http.Client) *GeminiAdapter {
	return &GeminiAdapter{cfg: cfg, client: client}
}

func (a *GeminiAdapter) Name() string         { return "gemini" }
func (a *GeminiAdapter) SupportsVision() bool { return true }

func (a *GeminiAdapter) Call(ctx context.Context, req *types.AnalysisRequest) (*Result, error) {
	start := time.Now()

	parts := []geminiPart{{Text: buildPromptText(req)}}
	if req.Image != nil {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{MimeType: req.Image.MimeType, Data: req.Image.Base64},
		})
	}

	body := geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
	}
	if req.Temperature != nil {
		body.GenerationConfig.Temperature = req.Temperature
	}
	if req.MaxTokens != nil {
		body.GenerationConfig.MaxOutputTokens = req.MaxTokens
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Code: types.ErrUnknown, Message: "marshal gemini request", Err: err}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.cfg.BaseURL, a.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Code: types.ErrUnknown, Message: "create gemini request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.cfg.APIKey)
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
		return nil, &Error{Code: types.ErrNetwork, Message: "read gemini response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &Error{Code: types.ErrProvider, Message: "unmarshal gemini response", Err: err}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, &Error{Code: types.ErrProvider, Message: "gemini returned no candidates"}
	}

	var text bytes.Buffer
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	return &Result{
		Text:             text.String(),
		Model:            a.cfg.Model,
		PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
		CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		LatencyMs:        time.Since(start).Milliseconds(),
	}, nil
}

// buildPromptText appends the user's free-text correction to the opaque
// prompt so the model sees it, even though it never enters the cache key.
func buildPromptText(req *types.AnalysisRequest) string {
	if req.AdditionalInfo == "" {
		return req.Prompt
	}
	return req.Prompt + "\n\nUser correction: " + req.AdditionalInfo
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     *float64 `json:"temperature,omitempty"`
		MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}
