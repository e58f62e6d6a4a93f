package httputil

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockHTTPClientDefaults(t *testing.T) {
	m := NewMockHTTPClient()
	req, err := http.NewRequest(http.MethodGet, "http://rehab.local/api/exercises", nil)
	require.NoError(t, err)

	resp, err := m.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/exercises", reqs[0].Path)
	assert.Empty(t, reqs[0].Body)
}

func TestMockHTTPClientResponder(t *testing.T) {
	m := NewMockHTTPClient()
	m.Responder = func(req *http.Request, body []byte) (int, string, error) {
		if req.Method != http.MethodPost {
			return http.StatusMethodNotAllowed, `{"error":"method"}`, nil
		}
		return http.StatusCreated, `{"echo":` + string(body) + `}`, nil
	}

	req, err := http.NewRequest(http.MethodPost, "http://rehab.local/api/sessions", strings.NewReader(`"x"`))
	require.NoError(t, err)
	resp, err := m.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"echo":"x"}`, string(b))
	assert.Equal(t, []byte(`"x"`), m.Requests()[0].Body)
}

func TestMockHTTPClientError(t *testing.T) {
	m := NewMockHTTPClient()
	want := errors.New("connection refused")
	m.Responder = func(*http.Request, []byte) (int, string, error) { return 0, "", want }

	req, err := http.NewRequest(http.MethodGet, "http://rehab.local/", nil)
	require.NoError(t, err)
	_, err = m.Do(req)
	assert.ErrorIs(t, err, want)
	assert.Len(t, m.Requests(), 1)
}
