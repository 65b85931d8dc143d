package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teslashibe/go-lumen/internal/httpc"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	geminiModel   = "gemini-2.0-flash"
	ocrPrompt     = "Transcribe all readable text in this image exactly as written. Reply with only the text. If there is no text, reply with nothing."
)

// Gemini transcribes text with Gemini Flash.
type Gemini struct {
	APIKey  string
	Model   string
	baseURL string
	client  *http.Client
}

// NewGemini creates a Gemini reader. Callers should check the key is set.
func NewGemini(apiKey string) *Gemini {
	return &Gemini{
		APIKey:  apiKey,
		Model:   geminiModel,
		baseURL: geminiBaseURL,
		client:  httpc.NewClient(15 * time.Second),
	}
}

// Name returns "gemini".
func (g *Gemini) Name() string { return "gemini" }

// ReadText sends the image inline and returns the model's transcription.
func (g *Gemini) ReadText(ctx context.Context, path string) (string, error) {
	if g.APIKey == "" {
		return "", fmt.Errorf("vision: GOOGLE_API_KEY not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return g.Describe(ctx, data, mimeType(path), ocrPrompt)
}

// Describe sends image bytes with a prompt and returns the first text part.
func (g *Gemini) Describe(ctx context.Context, image []byte, mime, prompt string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{
				"parts": []map[string]any{
					{"text": prompt},
					{"inline_data": map[string]string{"mime_type": mime, "data": base64.StdEncoding.EncodeToString(image)}},
				},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     0.0,
			"maxOutputTokens": 1000,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.Model, g.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision: gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision: gemini error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("vision: decode gemini response: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("vision: gemini error: %s", result.Error.Message)
	}
	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text), nil
	}
	return "", nil
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
