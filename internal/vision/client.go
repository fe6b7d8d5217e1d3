// Package vision wraps the external image-classification call behind a
// small HTTP client. The model endpoint is OpenAI-compatible: the image
// travels as a base64 data URL inside a chat-completion request, and
// the response is forced into a strict JSON schema describing nutrition
// facts.
//
// The client performs no retries; transient failures propagate to the
// caller, whose queue substrate owns the redelivery policy. Responses
// that do not conform to the nutrition schema are rejected with
// ErrBadResponse wrapped in the returned error.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/platewise/go-meal-backend/internal/domain"
)

// ErrBadResponse indicates the model returned a payload that does not
// conform to the nutrition schema.
var ErrBadResponse = errors.New("classification response does not match nutrition schema")

const analysisPrompt = "Analyze this food image and return a JSON with the nutritional information and tips."

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	seed    int
	http    *http.Client
}

// NewClient constructs a classification client. baseURL is the API
// root (e.g. "https://api.openai.com/v1"); model names the vision-capable
// completion model.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		seed:    1996,
		http:    &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Seed           int             `json:"seed"`
	Temperature    float64         `json:"temperature"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// nutritionResponseFormat pins the completion output to the nutrition
// schema. Kept as raw JSON; the shape never varies at runtime.
var nutritionResponseFormat = json.RawMessage(`{
  "type": "json_schema",
  "json_schema": {
    "name": "nutrition",
    "strict": true,
    "schema": {
      "type": "object",
      "additionalProperties": false,
      "required": ["calories", "proteins", "carbs", "fats", "tips", "aiInsights", "name"],
      "properties": {
        "calories":   {"type": "number"},
        "proteins":   {"type": "number"},
        "carbs":      {"type": "number"},
        "fats":       {"type": "number"},
        "tips":       {"type": "array", "items": {"type": "string"}},
        "aiInsights": {"type": "string"},
        "name":       {"type": "string"}
      }
    }
  }
}`)

// Classify sends the raw image bytes for analysis and returns validated
// nutrition facts. The call blocks for up to the configured timeout.
func (c *Client) Classify(ctx context.Context, image []byte) (*domain.NutritionFacts, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrBadResponse)
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	reqBody := chatRequest{
		Model:       c.model,
		Seed:        c.seed,
		Temperature: 0,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: analysisPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
		ResponseFormat: nutritionResponseFormat,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classification request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classification API status %d: %s", resp.StatusCode, truncate(raw, 512))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("parse response envelope: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrBadResponse)
	}

	return parseNutrition([]byte(cr.Choices[0].Message.Content))
}

// parseNutrition decodes and validates the model output against the
// fixed nutrition schema. Every field must be present; numeric fields
// must be non-negative; the meal name must be non-empty.
func parseNutrition(content []byte) (*domain.NutritionFacts, error) {
	var probe struct {
		Calories   *float64  `json:"calories"`
		Proteins   *float64  `json:"proteins"`
		Carbs      *float64  `json:"carbs"`
		Fats       *float64  `json:"fats"`
		Tips       *[]string `json:"tips"`
		AIInsights *string   `json:"aiInsights"`
		Name       *string   `json:"name"`
	}
	if err := json.Unmarshal(content, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	switch {
	case probe.Calories == nil, probe.Proteins == nil, probe.Carbs == nil, probe.Fats == nil:
		return nil, fmt.Errorf("%w: missing numeric field", ErrBadResponse)
	case probe.Tips == nil:
		return nil, fmt.Errorf("%w: missing tips", ErrBadResponse)
	case probe.AIInsights == nil:
		return nil, fmt.Errorf("%w: missing aiInsights", ErrBadResponse)
	case probe.Name == nil || *probe.Name == "":
		return nil, fmt.Errorf("%w: missing name", ErrBadResponse)
	}
	for _, v := range []float64{*probe.Calories, *probe.Proteins, *probe.Carbs, *probe.Fats} {
		if v < 0 {
			return nil, fmt.Errorf("%w: negative nutrition value", ErrBadResponse)
		}
	}

	return &domain.NutritionFacts{
		Calories:   *probe.Calories,
		Proteins:   *probe.Proteins,
		Carbs:      *probe.Carbs,
		Fats:       *probe.Fats,
		Tips:       *probe.Tips,
		AIInsights: *probe.AIInsights,
		Name:       *probe.Name,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
