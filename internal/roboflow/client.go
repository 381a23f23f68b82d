package roboflow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/config"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/consolidate"
)

const (
	maxResponseBytes = 8 << 20
	maxErrorBody     = 256
)

// StatusError reports a non-2xx answer from a hosted model.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("roboflow: %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("roboflow: %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client calls hosted detection models.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client. A nil http.Client uses http.DefaultClient;
// timeouts come from the caller's context.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient}
}

// Detect posts a base64 encoded image to one endpoint and parses the
// returned predictions.
//
// The body is the raw base64 string sent as application/x-www-form-urlencoded
// with the key in the api_key query parameter, which is what the hosted
// inference endpoints expect.
func (c *Client) Detect(ctx context.Context, ep config.Endpoint, apiKey, imageBase64 string) (*consolidate.ModelResult, error) {
	u, err := url.Parse(ep.URL)
	if err != nil {
		return nil, fmt.Errorf("roboflow: invalid url for %s: %w", ep.Name, err)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("api_key", apiKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(imageBase64))
	if err != nil {
		return nil, fmt.Errorf("roboflow: build request for %s: %w", ep.Name, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roboflow: call %s: %w", ep.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("roboflow: read %s response: %w", ep.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &StatusError{Endpoint: ep.Name, StatusCode: resp.StatusCode, Body: msg}
	}

	result, err := ParseResponse(ep.Name, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ep.Name, err)
	}
	return result, nil
}
