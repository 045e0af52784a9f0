package nerserve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tylerursuy/ARMR/internal/core/domain"
	"github.com/tylerursuy/ARMR/internal/infrastructure/resilience"
)

// Client talks to the model-serving sidecar that hosts the trained NER
// pipeline. It covers both sides of the model lifecycle: recognition during
// ingest and incremental updates plus weight export during retraining.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Recognize(ctx context.Context, text string) (*domain.Recognition, error) {
	request := map[string]any{"text": text}

	var recognition domain.Recognition
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/annotate", request, &recognition, "annotate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ner.annotate", call, classifyNERError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ner annotate", err)
	}
	return &recognition, nil
}

// Update applies one training batch and returns the reported loss.
func (c *Client) Update(ctx context.Context, batch []domain.TrainingExample, dropout float64) (float64, error) {
	request := map[string]any{
		"examples": batch,
		"dropout":  dropout,
	}

	var response struct {
		Loss float64 `json:"loss"`
	}
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/train", request, &response, "train")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ner.train", call, classifyNERError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return 0, wrapTemporaryIfNeeded("ner train", err)
	}
	return response.Loss, nil
}

// Export streams the serving process's current trained weights. The caller
// owns the returned reader.
func (c *Client) Export(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/model/export", nil)
	if err != nil {
		return nil, fmt.Errorf("create export request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ner export", fmt.Errorf("ner export request: %w", err))
	}
	if resp.StatusCode >= 300 {
		err := newHTTPStatusError("export", resp)
		_ = resp.Body.Close()
		return nil, wrapTemporaryIfNeeded("ner export", err)
	}
	return resp.Body, nil
}

// Reload tells the serving process to swap in the named published version.
func (c *Client) Reload(ctx context.Context, version string) error {
	request := map[string]any{"version": version}

	var response struct {
		Version string `json:"version"`
	}
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/model/reload", request, &response, "reload")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ner.reload", call, classifyNERError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded("ner reload", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ner %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newHTTPStatusError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func newHTTPStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}
