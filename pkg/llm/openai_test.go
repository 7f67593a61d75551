package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if seen != nil {
			require.NoError(t, json.Unmarshal(body, seen))
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestOpenAIClient_Complete(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, `{"ok":true}`, &seen)
	defer srv.Close()

	client, err := NewOpenAIClient("test-key", "gpt-4o-mini", option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), Request{
		System:    "sys",
		User:      "hola",
		JSON:      true,
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	assert.Equal(t, "gpt-4o-mini", seen["model"])
	format, ok := seen["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIClient_ImagePart(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, "texto", &seen)
	defer srv.Close()

	client, err := NewOpenAIClient("test-key", "gpt-4o", option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{User: "lee", ImageURL: "data:image/png;base64,AAAA"})
	require.NoError(t, err)

	messages := seen["messages"].([]any)
	require.Len(t, messages, 1)
	user := messages[0].(map[string]any)
	parts, ok := user["content"].([]any)
	require.True(t, ok)
	assert.Len(t, parts, 2)
}

func TestNewOpenAIClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIClient("", "gpt-4o")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestJSONObject(t *testing.T) {
	s, ok := JSONObject("```json\n{\"a\": {\"b\": 1}}\n```")
	assert.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, s)

	_, ok = JSONObject("no json here")
	assert.False(t, ok)
}
