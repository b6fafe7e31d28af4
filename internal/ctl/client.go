// Package ctl is the HTTP client underlying cmd/flowmium-ctl, grounded on
// jorge-barreto-orc's thin command-table CLI idiom: each subcommand does
// argument parsing only, deferring to one Client method.
package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowmium-io/flowmium/internal/events"
	"github.com/flowmium-io/flowmium/internal/types"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error.Message != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, apiErr.Error.Message, apiErr.Error.Code)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Submit posts a workflow document and returns the assigned flow id.
func (c *Client) Submit(ctx context.Context, wf types.Workflow) (uint64, error) {
	body, err := json.Marshal(wf)
	if err != nil {
		return 0, err
	}
	var out struct {
		ID uint64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/job", bytes.NewReader(body), &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) List(ctx context.Context) ([]types.FlowSummary, error) {
	var out []types.FlowSummary
	if err := c.do(ctx, http.MethodGet, "/api/v1/job", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Describe(ctx context.Context, id uint64) (*types.Flow, error) {
	var out types.Flow
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/job/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download streams flow-id/output-name to dir/output-name.
func (c *Client) Download(ctx context.Context, flowID uint64, outputName, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/artefact/%d/%s", c.baseURL, flowID, outputName), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download %d/%s: unexpected status %d", flowID, outputName, resp.StatusCode)
	}

	destPath := filepath.Join(dir, outputName)
	f, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return destPath, nil
}

func (c *Client) CreateSecret(ctx context.Context, key, value string) error {
	body, _ := json.Marshal(value)
	return c.do(ctx, http.MethodPost, "/api/v1/secret/"+key, bytes.NewReader(body), nil)
}

func (c *Client) UpdateSecret(ctx context.Context, key, value string) error {
	body, _ := json.Marshal(value)
	return c.do(ctx, http.MethodPut, "/api/v1/secret/"+key, bytes.NewReader(body), nil)
}

func (c *Client) DeleteSecret(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/secret/"+key, nil, nil)
}

// Subscribe connects to the scheduler's event stream and invokes onEvent
// for each delta until ctx is cancelled or the connection drops.
func (c *Client) Subscribe(ctx context.Context, onEvent func(events.FlowEvent)) error {
	wsURL := "ws" + c.baseURL[len("http"):] + "/api/v1/scheduler/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect scheduler stream: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var ev events.FlowEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event stream: %w", err)
		}
		onEvent(ev)
	}
}
