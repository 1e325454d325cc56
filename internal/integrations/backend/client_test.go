package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")

	_, err = NewClient("not a url")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid base url")
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c, err := NewClient("https://backend.example.com/")
	require.NoError(t, err)
	require.Equal(t, "https://backend.example.com/token", c.endpoint(tokenPath))
	require.Equal(t, "https://backend.example.com/api/chat", c.endpoint(chatPath))
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
	require.NoError(t, err)
	return c
}

// ---------------------------------------------------------------------------
// Client.Token
// ---------------------------------------------------------------------------

func TestClient_Token_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("X-Correlation-Id"))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "alice", r.PostForm.Get("username"))
		require.Equal(t, "s3cret&=", r.PostForm.Get("password"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"jwt-abc","token_type":"bearer"}`))
	}))
	defer srv.Close()

	tok, err := newTestClient(t, srv).Token(context.Background(), "alice", "s3cret&=")
	require.NoError(t, err)
	require.Equal(t, "jwt-abc", tok)
}

func TestClient_Token_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Token(context.Background(), "alice", "wrong")
	require.Error(t, err)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.HTTPStatusCode())
	require.Contains(t, err.Error(), "Incorrect username or password")
}

func TestClient_Token_MissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Token(context.Background(), "alice", "pw")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing access_token")
}

// ---------------------------------------------------------------------------
// Client.Chat
// ---------------------------------------------------------------------------

func TestClient_Chat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, "Bearer jwt-abc", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body chatRequest
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Equal(t, "how many rows?", body.Message)
		_, _ = w.Write([]byte(`{"response":"  42 rows\n"}`))
	}))
	defer srv.Close()

	reply, err := newTestClient(t, srv).Chat(context.Background(), "jwt-abc", "how many rows?")
	require.NoError(t, err)
	require.Equal(t, "  42 rows\n", reply, "reply must be returned verbatim")
}

func TestClient_Chat_StatusCodes(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusInternalServerError, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		_, err := newTestClient(t, srv).Chat(context.Background(), "tok", "hi")
		srv.Close()

		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr, "code=%d", code)
		require.Equal(t, code, statusErr.StatusCode)
	}
}

func TestClient_Chat_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Chat(context.Background(), "tok", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode chat response")
}

func TestClient_Chat_NetworkError(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), "tok", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
	var statusErr *HTTPStatusError
	require.False(t, errors.As(err, &statusErr))
}

func TestClient_Chat_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestClient(t, srv).Chat(ctx, "tok", "hi")
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// ---------------------------------------------------------------------------
// Client.Health
// ---------------------------------------------------------------------------

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	status, err := newTestClient(t, srv).Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", status)
}
