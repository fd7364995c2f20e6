package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/codec"
)

const (
	asrPath        = "/api/asr"
	timerAudioPath = "/api/pomodoro-audio"
	defaultTimeout = 30 * time.Second
	maxResponse    = 32 << 20
)

// ServerError is a failure reported by the backend, either as a non-2xx
// status or as an {"error": true} body
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Message)
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBearerToken authenticates every request
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// Client talks to the backend's one-shot endpoints
type Client struct {
	baseURL    string
	encoder    *codec.Encoder
	httpClient *http.Client
	token      string
	logger     *zap.Logger
}

// NewClient creates a backend client rooted at baseURL
func NewClient(baseURL string, encoder *codec.Encoder, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		encoder:    encoder,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recognize sends one utterance to /api/asr and returns the transcript
func (c *Client) Recognize(ctx context.Context, pcm audio.PCM16) (string, error) {
	if len(pcm) == 0 {
		return "", audio.ErrEmptyRecording
	}

	body, err := sonic.Marshal(domain.ASRRequest{Audio: c.encoder.Encode(pcm.Bytes())})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp domain.ASRResponse
	status, err := c.do(ctx, http.MethodPost, asrPath, body, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error {
		return "", &ServerError{StatusCode: status, Message: resp.Message}
	}

	c.logger.Info("Speech recognized",
		zap.Duration("duration", pcm.Duration()),
		zap.Int("textLength", len(resp.Text)))
	return resp.Text, nil
}

// FetchTimerAudio downloads the timer-completion chime
func (c *Client) FetchTimerAudio(ctx context.Context) (domain.TimerAudioResponse, error) {
	var resp domain.TimerAudioResponse
	status, err := c.do(ctx, http.MethodGet, timerAudioPath, nil, &resp)
	if err != nil {
		return domain.TimerAudioResponse{}, err
	}
	if resp.Error {
		return domain.TimerAudioResponse{}, &ServerError{StatusCode: status, Message: resp.Message}
	}

	c.logger.Info("Timer audio fetched",
		zap.Int("payloadSize", len(resp.Audio)),
		zap.Int("repeatTimes", resp.RepeatTimes))
	return resp, nil
}

// do performs a request and decodes a JSON body into out. Error statuses
// are turned into *ServerError, using the body's message when it has one.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Message string `json:"message"`
		}
		if sonic.Unmarshal(data, &failure) != nil || failure.Message == "" {
			failure.Message = strings.TrimSpace(string(data))
		}
		return resp.StatusCode, &ServerError{StatusCode: resp.StatusCode, Message: failure.Message}
	}

	if err := sonic.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}
