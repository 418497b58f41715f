package pagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPHost talks to a page host over HTTP: the embedding shell exposes
// POST /navigate and POST /execute and performs the page work itself.
type HTTPHost struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPHost(baseURL string, logger *slog.Logger) *HTTPHost {
	return &HTTPHost{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger.With("module", "pagehost"),
	}
}

type navigateRequest struct {
	URL string `json:"url"`
}

type executeRequest struct {
	Script string `json:"script"`
}

type executeResponse struct {
	Result any `json:"result"`
}

func (h *HTTPHost) Navigate(ctx context.Context, url string) error {
	h.logger.DebugContext(ctx, "Navigating page host", "url", url)

	return h.post(ctx, "/navigate", navigateRequest{URL: url}, nil)
}

func (h *HTTPHost) ExecuteScript(ctx context.Context, script string) (any, error) {
	var response executeResponse
	if err := h.post(ctx, "/execute", executeRequest{Script: script}, &response); err != nil {
		return nil, err
	}

	return response.Result, nil
}

func (h *HTTPHost) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode page host request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build page host request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("page host request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("page host returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode page host response: %w", err)
		}
	}

	return nil
}
