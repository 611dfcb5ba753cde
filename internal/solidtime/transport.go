package solidtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://app.solidtime.io/api"

// Notifier is the user-facing notification channel. The transport
// announces every API and network failure through it exactly once.
type Notifier interface {
	Notify(message string, duration time.Duration)
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	notifier   Notifier
	logger     *slog.Logger
}

func NewClient(apiKey, baseURL string, notifier Notifier, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		notifier: notifier,
		logger:   logger,
	}
}

// doRequest performs one request and classifies the result. Statuses
// listed in tolerated return (nil, nil): the caller reads this as "no
// data" rather than a failure, and no notification is sent. A nil body
// is also returned for 204 and empty 2xx responses.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, tolerated ...int) ([]byte, error) {
	if c.apiKey == "" {
		return nil, c.announce(&ConfigError{Missing: "API key"})
	}
	if c.baseURL == "" {
		return nil, c.announce(&ConfigError{Missing: "API base URL"})
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	requestID := uuid.NewString()
	requestStart := time.Now()
	c.logger.Debug("solidtime API request", "id", requestID, "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("API request transport error", "id", requestID, "method", method, "path", path, "error", err, "elapsed", time.Since(requestStart))
		return nil, c.announce(&NetworkError{URL: url, Err: err})
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.announce(&NetworkError{URL: url, Err: fmt.Errorf("reading response: %w", err)})
	}

	c.logger.Debug("solidtime API response", "id", requestID, "method", method, "path", path, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(requestStart))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil, nil
		}
		return respBody, nil
	}

	for _, status := range tolerated {
		if resp.StatusCode == status {
			return nil, nil
		}
	}

	apiErr := &APIError{
		Status:    resp.StatusCode,
		Message:   serviceMessage(respBody),
		RequestID: requestID,
	}
	c.logger.Error("API request failed", "id", requestID, "method", method, "path", path, "status", resp.StatusCode, "response", truncate(string(respBody), 200))
	return nil, c.announce(apiErr)
}

// announce surfaces an error to the user exactly once, at the point it
// is raised. Callers up the stack handle the error but never re-notify.
func (c *Client) announce(err error) error {
	if c.notifier != nil {
		c.notifier.Notify(err.Error(), 5*time.Second)
	}
	return err
}

// serviceMessage extracts a human-readable message from the service's
// structured error body, falling back to a truncated raw snippet.
func serviceMessage(body []byte) string {
	var parsed struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		return truncate(string(body), 200)
	}
	if len(parsed.Errors) == 0 {
		return parsed.Message
	}
	fields := make([]string, 0, len(parsed.Errors))
	for field := range parsed.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	details := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(parsed.Errors[field]) > 0 {
			details = append(details, field+": "+parsed.Errors[field][0])
		}
	}
	return parsed.Message + " (" + strings.Join(details, "; ") + ")"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
