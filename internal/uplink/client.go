package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/checker-network/arweave/pkg/types"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxErrorBody          = 4 << 10
)

// ErrSubmissionFailed is wrapped by every error returned from Submit.
var ErrSubmissionFailed = errors.New("measurement submission failed")

// SubmissionError reports a collector response outside the 2xx range.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", ErrSubmissionFailed, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrSubmissionFailed, e.StatusCode, e.Body)
}

func (e *SubmissionError) Unwrap() error { return ErrSubmissionFailed }

// Config holds the static configuration for a collector Client.
type Config struct {
	URL            string
	Version        string
	RequestTimeout time.Duration
}

// Dependencies allow test overrides for HTTP client and logging.
type Dependencies struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client posts measurements to the collector.
type Client struct {
	httpClient *http.Client
	url        string
	userAgent  string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient builds a collector Client from configuration and dependencies.
func NewClient(cfg Config, deps Dependencies) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("collector URL is required")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		httpClient: httpClient,
		url:        cfg.URL,
		userAgent:  "arweave-checker/" + version,
		timeout:    timeout,
		logger:     logger.Named("uplink"),
	}, nil
}

// Submit posts one measurement. requestID is sent as X-Request-Id; an empty
// value gets a fresh UUID. There is no retry.
func (c *Client) Submit(ctx context.Context, m types.Measurement, requestID string) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: marshal measurement: %w", ErrSubmissionFailed, err)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrSubmissionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SubmissionError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	c.logger.Debug("measurement submitted", zap.String("request_id", requestID), zap.Int("status", resp.StatusCode))
	return nil
}
