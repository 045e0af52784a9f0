package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tylerursuy/ARMR/internal/infrastructure/resilience"
)

// Store uploads packaged model archives to the artifact server over plain
// HTTP PUT. The server answers with the canonical reference clients should
// use to fetch the artifact later.
type Store struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, executor *resilience.Executor) *Store {
	return &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		executor:   executor,
	}
}

func (s *Store) Push(ctx context.Context, localPath string) (string, error) {
	payload, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	name := filepath.Base(localPath)

	var remoteRef string
	call := func(callCtx context.Context) error {
		ref, err := s.put(callCtx, name, payload)
		if err != nil {
			return err
		}
		remoteRef = ref
		return nil
	}

	if s.executor != nil {
		err = s.executor.Execute(ctx, "artifact.push", call, classifyPushError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("artifact push", err)
	}
	return remoteRef, nil
}

func (s *Store) put(ctx context.Context, name string, payload []byte) (string, error) {
	url := s.baseURL + "/artifacts/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/gzip")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("artifact push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &HTTPStatusError{
			Operation:  "push",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	var out struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Ref == "" {
		// Servers that answer with an empty body still stored the object.
		return url, nil
	}
	return out.Ref, nil
}
