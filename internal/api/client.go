package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/resty.v1"

	"github.com/imamik/clusterscaler/internal/autoscaler"
)

const clientTimeout = 30 * time.Second

// Client talks to the API server of a running daemon.
type Client struct {
	http *resty.Client
}

// NewClient returns a client for the server at addr, e.g. "localhost:8080"
// or "http://10.0.0.2:8080".
func NewClient(addr string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{http: resty.New().SetHostURL(addr).SetTimeout(clientTimeout)}
}

// Status fetches the reconciler summary.
func (c *Client) Status(ctx context.Context) (autoscaler.Summary, error) {
	var out autoscaler.Summary
	err := c.do(ctx, "GET", "/v1/status", nil, &out)
	return out, err
}

// Scale requests a manual scale and returns the new floor.
func (c *Client) Scale(ctx context.Context, nodeType string, delta int) (int, error) {
	var out ScaleResponse
	if err := c.do(ctx, "POST", "/v1/scale", ScaleRequest{NodeType: nodeType, Delta: delta}, &out); err != nil {
		return 0, err
	}
	return out.Floor, nil
}

// Reconcile asks the daemon to run a tick now.
func (c *Client) Reconcile(ctx context.Context) (autoscaler.Decision, error) {
	var out autoscaler.Decision
	err := c.do(ctx, "POST", "/v1/reconcile", nil, &out)
	return out, err
}

// Report pushes a load report, as a node agent would.
func (c *Client) Report(ctx context.Context, req ReportRequest) error {
	return c.do(ctx, "POST", "/v1/report", req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx).SetError(&ErrorResponse{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*ErrorResponse); ok && e.Cause != "" {
			return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status(), e.Cause)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status())
	}
	return nil
}
