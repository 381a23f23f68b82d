// Package gemini asks a generative model for a second opinion on an ECG
// image, given the detection models' results as context.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/config"
)

// Fallback opinions reported instead of an error.
const (
	InconclusiveCondition = "Analysis inconclusive"
	ErrorCondition        = "Error in Gemini analysis"

	inconclusiveExplanation = "Gemini model could not provide a structured analysis."
	errorExplanation        = "An error occurred when consulting the Gemini model."
)

const (
	temperature     = 0.2
	topK            = 32
	topP            = 0.95
	maxOutputTokens = 800
)

// ErrNoCandidates is returned when the model answered without any text.
var ErrNoCandidates = errors.New("gemini: response has no text candidates")

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Opinion is the generative model's assessment.
type Opinion struct {
	Condition   string  `json:"condition"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	Model       string  `json:"model"`
}

// Logger receives failures that are folded into fallback opinions.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Client wraps a generative model configured for ECG assessments.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
	cfg    config.Gemini
	logger Logger
}

// New creates a client authenticated with the configured API key. Extra
// options are appended, so tests can redirect the endpoint and HTTP client.
func New(ctx context.Context, cfg config.Gemini, logger Logger, opts ...option.ClientOption) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("gemini: no API key configured")
	}
	all := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		all = append(all, option.WithEndpoint(cfg.BaseURL))
	}
	all = append(all, opts...)

	client, err := genai.NewClient(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(temperature)
	model.SetTopK(topK)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(maxOutputTokens)

	if logger == nil {
		logger = nopLogger{}
	}
	return &Client{client: client, model: model, cfg: cfg, logger: logger}, nil
}

// Close releases the underlying connections.
func (c *Client) Close() error {
	return c.client.Close()
}

// SecondOpinion sends the image and the detection context to the model.
//
// It never fails: a reply without a JSON object becomes an "Analysis
// inconclusive" opinion and any transport, API or decoding error becomes an
// "Error in Gemini analysis" opinion, both with zero confidence.
func (c *Client) SecondOpinion(ctx context.Context, imageBase64, mimeType string, detections any) *Opinion {
	op, err := c.ask(ctx, imageBase64, mimeType, detections)
	if err != nil {
		c.logger.Printf("gemini second opinion failed: %v", err)
		return &Opinion{Condition: ErrorCondition, Explanation: errorExplanation, Model: c.cfg.Model}
	}
	return op
}

func (c *Client) ask(ctx context.Context, imageBase64, mimeType string, detections any) (*Opinion, error) {
	prompt, err := buildPrompt(detections)
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	raw, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, fmt.Errorf("gemini: decode image: %w", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: mimeType, Data: raw},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	text, err := firstText(resp)
	if err != nil {
		return nil, err
	}
	return parseOpinion(text, c.cfg.Model)
}

func buildPrompt(detections any) (string, error) {
	ctxJSON, err := json.MarshalIndent(detections, "", "  ")
	if err != nil {
		return "", fmt.Errorf("gemini: encode context: %w", err)
	}
	var b strings.Builder
	b.WriteString("Analyze this ECG image and provide a medical assessment. ")
	b.WriteString("I'll give you the results from other models as context:\n\n")
	b.WriteString("Context from other models:\n")
	b.Write(ctxJSON)
	b.WriteString("\n\nBased on this ECG image and the context from other models, please provide:\n")
	b.WriteString("1. The most likely condition (either confirm one of the existing detections or identify a new condition)\n")
	b.WriteString("2. A confidence score (0-100%)\n")
	b.WriteString("3. A brief explanation of your assessment\n\n")
	b.WriteString("Format your response as a JSON object with keys: condition, confidence (number), explanation (string)")
	return b.String(), nil
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", ErrNoCandidates
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", ErrNoCandidates
	}
	return b.String(), nil
}

// parseOpinion pulls the first {...} span out of free text. Models often wrap
// the object in prose or code fences.
func parseOpinion(text, model string) (*Opinion, error) {
	span := jsonObject.FindString(text)
	if span == "" {
		return &Opinion{
			Condition:   InconclusiveCondition,
			Explanation: inconclusiveExplanation,
			Model:       model,
		}, nil
	}

	var raw struct {
		Condition   string  `json:"condition"`
		Confidence  float64 `json:"confidence"`
		Explanation string  `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, fmt.Errorf("gemini: decode opinion: %w", err)
	}
	return &Opinion{
		Condition:   raw.Condition,
		Confidence:  raw.Confidence,
		Explanation: raw.Explanation,
		Model:       model,
	}, nil
}
