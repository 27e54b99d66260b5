// Package coach is the HTTP client for the remote focus-coach service, which
// owns all vision, language and speech inference. The client is a thin typed
// wrapper: it never retries, never falls back, and applies no timeout beyond
// the transport default, so a hung request simply never produces a verdict.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

// WithAPIKey attaches a bearer token to every request. The reference service
// is unauthenticated; deployments behind a proxy may require one.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat submits one conversational turn. The message may originate from typed
// input, a synthesized nudge, or a timer-completion announcement; the service
// treats them all identically.
func (c *Client) Chat(ctx context.Context, message string) (ChatResponse, error) {
	var resp ChatResponse
	if err := c.post(ctx, "/chat", chatRequest{Message: message}, &resp); err != nil {
		return ChatResponse{}, fmt.Errorf("chat turn: %w", err)
	}
	return resp, nil
}

// Voice submits one complete recorded utterance as base64 audio plus its
// container format (e.g. "wav"). The response carries the transcription
// alongside the usual chat fields.
func (c *Client) Voice(ctx context.Context, audioBase64, format string) (ChatResponse, error) {
	var resp ChatResponse
	if err := c.post(ctx, "/voice", voiceRequest{Audio: audioBase64, Format: format}, &resp); err != nil {
		return ChatResponse{}, fmt.Errorf("voice turn: %w", err)
	}
	return resp, nil
}

// DetectScreen submits a base64 JPEG screen sample for analysis.
func (c *Client) DetectScreen(ctx context.Context, imageBase64 string) (DetectResponse, error) {
	var resp DetectResponse
	if err := c.post(ctx, "/detectscreen", detectRequest{Image: imageBase64}, &resp); err != nil {
		return DetectResponse{}, fmt.Errorf("screen sample: %w", err)
	}
	return resp, nil
}

// DetectCamera submits a base64 JPEG camera sample for analysis.
func (c *Client) DetectCamera(ctx context.Context, imageBase64 string) (DetectResponse, error) {
	var resp DetectResponse
	if err := c.post(ctx, "/detectcamera", detectRequest{Image: imageBase64}, &resp); err != nil {
		return DetectResponse{}, fmt.Errorf("camera sample: %w", err)
	}
	return resp, nil
}

// Welcome fetches the greeting the coach speaks when a session begins.
func (c *Client) Welcome(ctx context.Context) (WelcomeResponse, error) {
	var resp WelcomeResponse
	if err := c.get(ctx, "/welcome", &resp); err != nil {
		return WelcomeResponse{}, fmt.Errorf("welcome: %w", err)
	}
	return resp, nil
}

// Reset clears the coach's server-side conversation history.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.post(ctx, "/reset", struct{}{}, &struct{}{}); err != nil {
		return fmt.Errorf("reset conversation: %w", err)
	}
	return nil
}

// Health reports whether the service is reachable.
func (c *Client) Health(ctx context.Context) error {
	if err := c.get(ctx, "/health", &struct{}{}); err != nil {
		return fmt.Errorf("coach health: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, errorDetail(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorDetail(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	detail := strings.TrimSpace(string(data))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}
