package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"jarvis/confirm"
)

// Client talks to a running bridge, e.g. from `jarvis ask --server`.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for baseURL. An empty token sends no
// Authorization header.
func NewClient(baseURL, token string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Minute)
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

// Think runs an episode on the server and returns its answer.
func (c *Client) Think(ctx context.Context, goal string) (string, error) {
	var out struct {
		Response
		Result string `json:"result"`
	}
	if err := c.do(ctx, "POST", "/api/agent/think", ThinkRequest{Goal: goal}, &out); err != nil {
		return "", err
	}
	if !out.Success {
		return out.Result, errors.New(out.Error)
	}
	return out.Result, nil
}

// Pending lists the confirmations waiting for an answer.
func (c *Client) Pending(ctx context.Context) ([]confirm.Request, error) {
	var out struct {
		Response
		Result []confirm.Request `json:"result"`
	}
	if err := c.do(ctx, "GET", "/api/confirmations", nil, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Resolve answers a pending confirmation.
func (c *Client) Resolve(ctx context.Context, id string, confirmed bool) error {
	var out Response
	if err := c.do(ctx, "POST", "/api/confirmations/resolve", ResolveRequest{ID: id, Confirmed: confirmed}, &out); err != nil {
		return err
	}
	if !out.Success {
		return errors.New(out.Error)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetResult(result).SetError(result)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode() == 401 {
		return fmt.Errorf("%s %s: unauthorized", method, path)
	}
	return nil
}
