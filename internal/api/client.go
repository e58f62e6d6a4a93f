package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/rehab.report/internal/feedback"
	"github.com/banshee-data/rehab.report/internal/httputil"
	"github.com/banshee-data/rehab.report/internal/pose"
)

// Client calls a running server's session API.
type Client struct {
	base *url.URL
	http httputil.HTTPClient
}

// NewClient returns a client for the server at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc httputil.HTTPClient) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: u, http: hc}, nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e httputil.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) CreateSession(req CreateSessionRequest) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.do(http.MethodPost, "/api/sessions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartSession(id string) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.do(http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendFrame posts one frame and returns its feedback.
func (c *Client) SendFrame(id string, f pose.Frame) (feedback.Feedback, error) {
	var out feedback.Feedback
	err := c.do(http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/frames", f, &out)
	return out, err
}

func (c *Client) FinishSession(id string) (*FinishResponse, error) {
	var out FinishResponse
	if err := c.do(http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/finish", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
