package patrol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/banshee-data/patrol.report/internal/httputil"
	"github.com/banshee-data/patrol.report/internal/monitoring"
	"github.com/banshee-data/patrol.report/internal/version"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// Client talks to the patrol service through a Backend. Each call is exactly
// one HTTP round trip; failures are returned, never retried.
type Client struct {
	HTTPClient httputil.HTTPClient
	Backend    Backend
}

// NewClient creates a client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient httputil.HTTPClient, backend Backend) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(nil)
	}
	return &Client{HTTPClient: httpClient, Backend: backend}
}

// Optimize requests optimised routes for params.
func (c *Client) Optimize(ctx context.Context, params RunParameters) (*Result, error) {
	return c.run(ctx, OpOptimize, ModeOptimized, params)
}

// RandomPatrol requests the random-walk baseline for params.
func (c *Client) RandomPatrol(ctx context.Context, params RunParameters) (*Result, error) {
	return c.run(ctx, OpRandomPatrol, ModeRandom, params)
}

// Run dispatches on mode.
func (c *Client) Run(ctx context.Context, mode Mode, params RunParameters) (*Result, error) {
	if mode == ModeRandom {
		return c.RandomPatrol(ctx, params)
	}
	return c.Optimize(ctx, params)
}

func (c *Client) run(ctx context.Context, op Operation, mode Mode, params RunParameters) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, c.fail(op, 0, err.Error(), err)
	}
	var result Result
	if err := c.do(ctx, op, "", newRunRequest(mode, params), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveMap stores a named map.
func (c *Client) SaveMap(ctx context.Context, rec MapRecord) (*SaveReceipt, error) {
	var receipt SaveReceipt
	if err := c.do(ctx, OpSaveMap, "", rec, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetMaps lists stored maps.
func (c *Client) GetMaps(ctx context.Context) ([]SavedMap, error) {
	var maps []SavedMap
	if err := c.do(ctx, OpListMaps, "", nil, &maps); err != nil {
		return nil, err
	}
	return maps, nil
}

// GetMap fetches one stored map by ID.
func (c *Client) GetMap(ctx context.Context, id string) (*SavedMap, error) {
	var m SavedMap
	if err := c.do(ctx, OpGetMap, id, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveResult stores the outcome of a run.
func (c *Client) SaveResult(ctx context.Context, rec ResultRecord) (*SaveReceipt, error) {
	var receipt SaveReceipt
	if err := c.do(ctx, OpSaveResult, "", rec, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// do performs one round trip. A nil body sends no payload; out receives the
// decoded success body.
func (c *Client) do(ctx context.Context, op Operation, id string, body, out interface{}) error {
	ep, err := c.Backend.Endpoint(op, id)
	if err != nil {
		return c.fail(op, 0, err.Error(), err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return c.fail(op, 0, "", fmt.Errorf("encoding request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, ep.URL, reader)
	if err != nil {
		return c.fail(op, 0, "", fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return c.fail(op, 0, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.fail(op, resp.StatusCode, "", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(op, resp.StatusCode, serverMessage(data), fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return c.fail(op, resp.StatusCode, "", fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// serverMessage extracts the failure text from an error body. The REST
// backend uses {"message"}; the single-endpoint backend uses {"error"}.
func serverMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

func (c *Client) fail(op Operation, status int, msg string, err error) *Error {
	info := operations[op]
	if msg == "" {
		msg = info.defaultMessage
	}
	monitoring.Logf("patrol %s via %s backend failed (status %d): %s: %v", op, c.Backend.Name(), status, msg, err)
	return &Error{Kind: info.kind, Message: msg, Status: status, Err: err}
}
