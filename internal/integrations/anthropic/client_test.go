package anthropic

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

	"portfolio-chat-proxy/internal/domain"
)

func TestMessagesURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.anthropic.com", "https://api.anthropic.com/v1/messages"},
		{"https://api.anthropic.com/", "https://api.anthropic.com/v1/messages"},
		{"http://localhost:8080/v1", "http://localhost:8080/v1/messages"},
		{"", "https://api.anthropic.com/v1/messages"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, messagesURL(tc.base), "base=%q", tc.base)
	}
}

func TestNewClient_NilKeySource(t *testing.T) {
	_, err := NewClient(nil)
	require.ErrorContains(t, err, "nil")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(StaticKey("sk-test"))
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, c.baseURL)
	require.Equal(t, defaultTimeout, c.httpClient.Timeout)
}

func TestStaticKey_Empty(t *testing.T) {
	_, err := StaticKey(" ").APIKey(context.Background())
	require.Error(t, err)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		StaticKey("sk-test"),
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func userMessage(t *testing.T, content string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(domain.Turn{Role: domain.RoleUser, Content: content})
	require.NoError(t, err)
	return raw
}

func testRequest(t *testing.T) domain.CompletionRequest {
	return domain.CompletionRequest{
		Model:     "claude-test",
		MaxTokens: 300,
		System:    "be brief",
		Messages:  []json.RawMessage{userMessage(t, "hi")},
	}
}

func TestClient_Complete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		require.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{
			"model":"claude-test",
			"max_tokens":300,
			"system":"be brief",
			"messages":[{"role":"user","content":"hi"}]
		}`, string(reqBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1",
			"type":"message",
			"role":"assistant",
			"model":"claude-test",
			"stop_reason":"end_turn",
			"content":[{"type":"text","text":"Hello!"}],
			"usage":{"input_tokens":12,"output_tokens":3}
		}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv).Complete(context.Background(), testRequest(t))
	require.NoError(t, err)
	require.Equal(t, "msg_1", out.ID)
	require.Equal(t, "end_turn", out.StopReason)
	require.Equal(t, []domain.ContentBlock{{Type: "text", Text: "Hello!"}}, out.Content)
	require.Equal(t, 12, out.InputTokens)
	require.Equal(t, 3, out.OutputTokens)
}

func TestClient_Complete_ForwardsRawHistoryVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(reqBody), `{"role":"assistant","content":"x","extra":1}`)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	req := testRequest(t)
	req.Messages = append([]json.RawMessage{json.RawMessage(`{"role":"assistant","content":"x","extra":1}`)}, req.Messages...)
	_, err := newTestClient(t, srv).Complete(context.Background(), req)
	require.NoError(t, err)
}

func TestClient_Complete_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Complete(context.Background(), testRequest(t))
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.HTTPStatusCode())
	require.Contains(t, statusErr.Body, "overloaded_error")
	require.NotContains(t, err.Error(), "sk-test")
}

func TestClient_Complete_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Complete(context.Background(), testRequest(t))
	require.ErrorContains(t, err, "decode response")
}

func TestClient_Complete_EmptyContentIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv).Complete(context.Background(), testRequest(t))
	require.NoError(t, err)
	require.Empty(t, out.Content)
}

func TestClient_Complete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Complete(context.Background(), testRequest(t))
	require.ErrorContains(t, err, "request failed")
}

func TestClient_Complete_NetworkError(t *testing.T) {
	c, err := NewClient(StaticKey("sk-test"), WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.Complete(context.Background(), testRequest(t))
	require.ErrorContains(t, err, "request failed")
}

type failingKeys struct{}

func (failingKeys) APIKey(context.Context) (string, error) {
	return "", errors.New("ssm unavailable")
}

func TestClient_Complete_KeySourceError(t *testing.T) {
	c, err := NewClient(failingKeys{})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), testRequest(t))
	require.ErrorContains(t, err, "resolve API key")
}

func TestClient_Complete_ValidatesRequest(t *testing.T) {
	c, err := NewClient(StaticKey("sk-test"))
	require.NoError(t, err)

	req := testRequest(t)
	req.Model = ""
	_, err = c.Complete(context.Background(), req)
	require.ErrorContains(t, err, "model")

	req = testRequest(t)
	req.MaxTokens = 0
	_, err = c.Complete(context.Background(), req)
	require.ErrorContains(t, err, "max tokens")
}
