package responses

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

func (c *client) CreateResponseStream(parentCtx context.Context, req *CreateRequest) (<-chan StreamResult, error) {
	if req == nil {
		return nil, fmt.Errorf("upstream: request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("upstream: invalid request: %w", err)
	}

	c.logger.Debug("stream request starting",
		zap.String("model", req.Model),
	)

	// Per-request timeout (0 = only use parentCtx)
	var ctx context.Context
	var cancel context.CancelFunc
	if c.cfg.UpstreamTimeout > 0 {
		ctx, cancel = context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	} else {
		ctx, cancel = context.WithCancel(parentCtx)
	}

	results := make(chan StreamResult, 16)

	go func() {
		defer close(results)
		defer cancel()

		streamReq := *req
		streamReq.Stream = true

		bodyBytes, err := json.Marshal(&streamReq)
		if err != nil {
			results <- StreamResult{Err: fmt.Errorf("upstream: marshal stream request: %w", err)}
			return
		}
		if len(bodyBytes) > maxRequestSize {
			results <- StreamResult{Err: fmt.Errorf(
				"upstream: request too large (%d bytes, max %d)",
				len(bodyBytes), maxRequestSize,
			)}
			return
		}

		url := c.cfg.BaseURL + "/v1/responses"

		doOnce := func(ctx context.Context, body []byte) (*http.Response, error) {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("upstream: build HTTP stream request: %w", err)
			}
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
			httpReq.Header.Set("Content-Type", "application/json")
			return c.httpClient.Do(httpReq)
		}

		// Connect with retries (no mid-stream retries)
		resp, err := c.doWithRetry(ctx, bodyBytes, doOnce)
		if err != nil {
			c.logger.Error("stream connect failed",
				zap.String("model", req.Model),
				zap.Error(err),
			)
			results <- StreamResult{Err: err}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(resp.Body)

			var perr providerErrorResponse
			if err := json.Unmarshal(raw, &perr); err == nil && perr.Error.Message != "" {
				results <- StreamResult{Err: fmt.Errorf("upstream: stream %d: %s (%s)",
					resp.StatusCode, perr.Error.Message, perr.Error.Type)}
				return
			}

			results <- StreamResult{Err: fmt.Errorf("upstream: stream %d: %s",
				resp.StatusCode, truncate(string(raw), 200))}
			return
		}

		// Read SSE stream
		reader := bufio.NewReader(resp.Body)
		eventCount := 0

		for {
			// Respect context cancellation (timeout / caller cancel)
			select {
			case <-ctx.Done():
				c.logger.Info("stream cancelled",
					zap.String("model", req.Model),
					zap.Error(ctx.Err()),
				)
				return
			default:
			}

			line, err := reader.ReadBytes('\n')
			if err != nil {
				if err == io.EOF {
					// Normal end of stream without explicit [DONE]
					c.logger.Info("stream completed (EOF)",
						zap.String("model", req.Model),
						zap.Int("events", eventCount),
					)
					return
				}
				results <- StreamResult{Err: fmt.Errorf("upstream: read stream line: %w", err)}
				return
			}

			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}

			const prefix = "data: "
			if !bytes.HasPrefix(line, []byte(prefix)) {
				// Ignore non-data SSE lines
				continue
			}

			payload := bytes.TrimSpace(line[len(prefix):])

			// End-of-stream sentinel from provider
			if bytes.Equal(payload, []byte("[DONE]")) {
				c.logger.Info("stream received [DONE]",
					zap.String("model", req.Model),
					zap.Int("events", eventCount),
				)
				return
			}

			var event Event
			if err := json.Unmarshal(payload, &event); err != nil {
				results <- StreamResult{Err: fmt.Errorf("upstream: unmarshal stream event: %w", err)}
				return
			}
			eventCount++

			select {
			case <-ctx.Done():
				c.logger.Info("stream cancelled while sending event",
					zap.String("model", req.Model),
					zap.Int("events", eventCount),
					zap.Error(ctx.Err()),
				)
				return
			case results <- StreamResult{Event: &event}:
			}
		}
	}()

	return results, nil
}
