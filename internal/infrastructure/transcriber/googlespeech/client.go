package googlespeech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tylerursuy/ARMR/internal/infrastructure/resilience"
)

// Client talks to the speech-to-text gateway. The gateway fronts the cloud
// recognizer and exposes one synchronous endpoint: POST /v1/recognize with the
// raw wav body, returning the transcript as JSON.
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

func (c *Client) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	// The body may be consumed by a retried attempt, so it is buffered once
	// up front.
	payload, err := io.ReadAll(audio)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}

	var transcript string
	call := func(callCtx context.Context) error {
		text, err := c.recognize(callCtx, payload)
		if err != nil {
			return err
		}
		transcript = text
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "speech.recognize", call, classifySpeechError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("speech recognize", err)
	}
	return transcript, nil
}

func (c *Client) recognize(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/recognize", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("create recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech recognize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", newHTTPStatusError("recognize", resp)
	}

	var out struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode recognize response: %w", err)
	}
	return out.Transcript, nil
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
