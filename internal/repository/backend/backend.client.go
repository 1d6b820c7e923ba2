// FilePath: internal/repository/backend/backend.client.go

// Package backend implements the repositories over the external monitoring
// API. Every call forwards the bearer token found in the request context.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/config"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository"
)

const maxErrorBodyLen = 512

// Client wraps the two resty clients used to reach the backend. Reads are
// retried on transport failures, mutations never are.
type Client struct {
	read          *resty.Client
	write         *resty.Client
	downloadLimit int64
}

// New creates a backend client from the backend configuration.
func New(cfg config.BackendConfig) *Client {
	base := func() *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimRight(cfg.URL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
	}

	read := base().
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait)

	return &Client{
		read:          read,
		write:         base(),
		downloadLimit: cfg.DownloadLimit,
	}
}

// request prepares an authenticated request. A missing token is an
// authentication error before anything is sent.
func (c *Client) request(ctx context.Context, method string) (*resty.Request, error) {
	token, ok := repository.TokenFrom(ctx)
	if !ok {
		return nil, errors.NewAuthError("Unauthorized", nil)
	}
	return c.anonymous(ctx, method).SetAuthToken(token), nil
}

func (c *Client) anonymous(ctx context.Context, method string) *resty.Request {
	if method == http.MethodGet {
		return c.read.R().SetContext(ctx)
	}
	return c.write.R().SetContext(ctx)
}

// execute sends req and maps transport failures and non-2xx answers onto the
// error taxonomy. what names the operation in messages, e.g. "fetch levels".
func (c *Client) execute(req *resty.Request, method, path, what string) (*resty.Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		nuts.L.Warnf("[Backend] %s %s failed: %v", method, path, err)
		return nil, errors.NewTransientNetworkError(fmt.Sprintf("Failed to %s", what), err)
	}
	if resp.IsError() {
		return nil, statusError(resp.StatusCode(), resp.Body(), what)
	}
	return resp, nil
}

// call runs an authenticated request and decodes the answer into dest,
// unwrapping the envelope keys in order.
func (c *Client) call(ctx context.Context, method, path, what string, build func(*resty.Request), dest any, keys ...string) error {
	req, err := c.request(ctx, method)
	if err != nil {
		return err
	}
	if build != nil {
		build(req)
	}
	resp, err := c.execute(req, method, path, what)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if err := decode(resp.Body(), dest, keys...); err != nil {
		return errors.NewRequestError("Invalid response format", http.StatusBadGateway, err)
	}
	return nil
}

func statusError(code int, body []byte, what string) error {
	msg := backendMessage(body)
	switch code {
	case http.StatusUnauthorized:
		if msg == "" {
			msg = "Unauthorized"
		}
		return errors.NewAuthError(msg, nil)
	case http.StatusForbidden:
		if msg == "" {
			msg = "Forbidden"
		}
		return errors.NewAuthorizationError(msg, nil)
	case http.StatusNotFound:
		if msg == "" {
			msg = "Not found"
		}
		return errors.NewNotFoundError(msg, nil)
	}
	if msg == "" {
		msg = fmt.Sprintf("Failed to %s: %d", what, code)
	}
	return errors.NewRequestError(msg, code, nil)
}

// backendMessage extracts a human readable message from an error body: the
// "error" or "message" field of a JSON body, or a short plain text body.
func backendMessage(body []byte) string {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
		return payload.Message
	}
	text := strings.TrimSpace(string(body))
	if text == "" || len(text) > maxErrorBodyLen || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

// decode reads body into dest. The backend wraps payloads inconsistently:
// {"levels": [...]}, {"user": {...}}, {"status", "message", "data"} or the
// bare value. keys are tried first, then "data", then the body itself.
func decode(body []byte, dest any, keys ...string) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err == nil {
		for _, k := range append(keys, "data") {
			if raw, ok := envelope[k]; ok && len(raw) > 0 && string(raw) != "null" {
				return json.Unmarshal(raw, dest)
			}
		}
	}
	return json.Unmarshal(body, dest)
}
