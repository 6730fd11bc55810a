package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const maxRequestSize = 2 * 1024 * 1024 // 2MB total JSON payload

type providerErrorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

func (c *client) CreateResponse(parentCtx context.Context, req *CreateRequest) (*Response, error) {
	start := time.Now()

	if req == nil {
		return nil, fmt.Errorf("upstream: request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("upstream: invalid request: %w", err)
	}

	c.logger.Debug("create response starting",
		zap.String("model", req.Model),
	)

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: marshal request: %w", err)
	}
	if len(bodyBytes) > maxRequestSize {
		return nil, fmt.Errorf(
			"upstream: request too large (%d bytes, max %d)",
			len(bodyBytes), maxRequestSize,
		)
	}

	var out Response
	if err := c.doJSON(parentCtx, http.MethodPost, "/v1/responses", bodyBytes, &out); err != nil {
		c.logger.Error("create response failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, err
	}

	return &out, nil
}

func (c *client) GetResponse(ctx context.Context, responseID string) (*Response, error) {
	if responseID == "" {
		return nil, fmt.Errorf("upstream: response id is required")
	}

	var out Response
	path := "/v1/responses/" + url.PathEscape(responseID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) CancelResponse(ctx context.Context, responseID string) (*Response, error) {
	if responseID == "" {
		return nil, fmt.Errorf("upstream: response id is required")
	}

	var out Response
	path := "/v1/responses/" + url.PathEscape(responseID) + "/cancel"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) DeleteResponse(ctx context.Context, responseID string) (*DeletedResponse, error) {
	if responseID == "" {
		return nil, fmt.Errorf("upstream: response id is required")
	}

	var out DeletedResponse
	path := "/v1/responses/" + url.PathEscape(responseID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON performs one upstream call with retry, per-request timeout and
// JSON decoding of the 2xx body into out.
func (c *client) doJSON(parentCtx context.Context, method, path string, body []byte, out interface{}) error {
	var ctx context.Context
	var cancel context.CancelFunc
	if c.cfg.UpstreamTimeout > 0 {
		ctx, cancel = context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	} else {
		ctx, cancel = context.WithCancel(parentCtx)
	}
	defer cancel()

	fullURL := c.cfg.BaseURL + path

	// doOnce builds a fresh *http.Request for each attempt
	doOnce := func(ctx context.Context, body []byte) (*http.Response, error) {
		var reader io.Reader
		if len(body) > 0 {
			reader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return nil, fmt.Errorf("upstream: build HTTP request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		if len(body) > 0 {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		return c.httpClient.Do(httpReq)
	}

	resp, err := c.doWithRetry(ctx, body, doOnce)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)

		// Try to parse structured error
		var perr providerErrorResponse
		if err := json.Unmarshal(raw, &perr); err == nil && perr.Error.Message != "" {
			c.logger.Error("upstream provider error",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.String("error_type", perr.Error.Type),
				zap.String("error_message", perr.Error.Message),
			)
			return fmt.Errorf("upstream: %d: %s (%s)",
				resp.StatusCode, perr.Error.Message, perr.Error.Type)
		}

		c.logger.Error("upstream error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), 200)),
		)
		return fmt.Errorf("upstream: %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("upstream: decode response: %w", err)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
