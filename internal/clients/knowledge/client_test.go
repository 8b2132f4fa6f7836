package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		BaseURL:   serverURL,
		APIKey:    "test-key",
		Model:     "sonar",
		MaxTokens: 256,
	}, zerolog.Nop())
}

func TestAsk_Success(t *testing.T) {
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := chatResponse{
			Choices: []chatChoice{
				{Message: chatMessage{Role: "assistant", Content: "Private party value is $8,000-$10,000."}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	answer, err := client.Ask(context.Background(), "used market value 2015 toyota camry")
	require.NoError(t, err)
	assert.Contains(t, answer, "$8,000-$10,000")

	// Determinism settings always ride along.
	assert.Equal(t, "sonar", gotReq.Model)
	assert.Equal(t, 256, gotReq.MaxTokens)
	assert.Zero(t, gotReq.Temperature)
}

func TestAsk_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Ask(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestAsk_EmptyAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Ask(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestAsk_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Ask(context.Background(), "anything")
	assert.Error(t, err)
}

func TestAsk_ProviderErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{
			Error: &apiError{Message: "model overloaded", Type: "server_error"},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Ask(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestAsk_ContextDeadlineAbandonsCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Content: "too late"}}},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Ask(ctx, "anything")
	assert.Error(t, err)
}
