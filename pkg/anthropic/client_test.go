package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds an sdkClient pointing at a local test server, with
// SDK retries disabled so error cases fail fast.
func newTestClient(baseURL string) *sdkClient {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
	}
}

func messageJSON(id, text string) map[string]any {
	return map[string]any{
		"id":   id,
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"model":       "claude-sonnet-4-5",
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":  25,
			"output_tokens": 110,
		},
	}
}

func TestSDKClient_CreateMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageJSON("msg_001", "市场分析如下")) //nolint:errcheck
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5",
		MaxTokens: 2048,
		Messages:  []Message{{Role: "user", Content: "分析奶茶店市场"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_001", resp.ID)
	assert.Equal(t, "claude-sonnet-4-5", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "市场分析如下", resp.Text())
	assert.Equal(t, int64(25), resp.Usage.InputTokens)
	assert.Equal(t, int64(110), resp.Usage.OutputTokens)
}

func TestSDKClient_CreateMessage_SystemAndTemperature(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			System []struct {
				Text string `json:"text"`
			} `json:"system"`
			Temperature *float64 `json:"temperature"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.System, 1)
		assert.Equal(t, "你是市场分析师", body.System[0].Text)
		require.NotNil(t, body.Temperature)
		assert.Equal(t, 0.3, *body.Temperature)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageJSON("msg_sys", "收到")) //nolint:errcheck
	}))
	defer ts.Close()

	temp := 0.3
	client := newTestClient(ts.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:       "claude-sonnet-4-5",
		MaxTokens:   256,
		System:      "你是市场分析师",
		Messages:    []Message{{Role: "user", Content: "开始"}},
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_sys", resp.ID)
}

func TestSDKClient_CreateMessage_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"type": "error",
			"error": map[string]any{
				"type":    "invalid_request_error",
				"message": "max_tokens required",
			},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestMessageResponse_Text(t *testing.T) {
	t.Parallel()

	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "第一段。"},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "第二段。"},
	}}
	assert.Equal(t, "第一段。第二段。", resp.Text())

	empty := &MessageResponse{}
	assert.Empty(t, empty.Text())
}
