package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// HTTPClient is the part of *http.Client the API client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RecordedRequest is a request seen by MockHTTPClient, with its body read.
type RecordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

// MockHTTPClient answers requests with Responder, or 200 and an empty body
// when Responder is nil, and records every request.
type MockHTTPClient struct {
	mu        sync.Mutex
	Responder func(req *http.Request, body []byte) (status int, respBody string, err error)
	requests  []RecordedRequest
}

func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = b
	}

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{Method: req.Method, Path: req.URL.Path, Body: body})
	responder := m.Responder
	m.mu.Unlock()

	status, respBody := http.StatusOK, ""
	if responder != nil {
		var err error
		status, respBody, err = responder(req, body)
		if err != nil {
			return nil, err
		}
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(respBody)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    req,
	}, nil
}

// Requests returns a copy of the recorded requests.
func (m *MockHTTPClient) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}
