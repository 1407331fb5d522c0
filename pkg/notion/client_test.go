package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rewriteTransport redirects every request to the test server so the
// wrapped notionapi client can be exercised against httptest.
type rewriteTransport struct {
	target string
}

func (t rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	u, err := url.Parse(t.target)
	if err != nil {
		return nil, err
	}
	r.URL.Scheme = u.Scheme
	r.URL.Host = u.Host
	return http.DefaultTransport.RoundTrip(r)
}

func newTestNotionClient(target string) Client {
	return NewClient("test-token",
		WithRateLimit(0),
		WithHTTPClient(&http.Client{Transport: rewriteTransport{target: target}}),
	)
}

func TestClient_PublishReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/pages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body struct {
			Parent struct {
				Type   string `json:"type"`
				PageID string `json:"page_id"`
			} `json:"parent"`
			Children []map[string]any `json:"children"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "page_id", body.Parent.Type)
		assert.Equal(t, "parent-1", body.Parent.PageID)
		require.Len(t, body.Children, 2)
		assert.Equal(t, "heading_2", body.Children[0]["type"])
		assert.Equal(t, "paragraph", body.Children[1]["type"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"page","id":"page-123"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestNotionClient(srv.URL)
	pageID, err := c.PublishReport(context.Background(), "parent-1", "决策报告",
		"## 市场分析\n\n市场规模约500亿元。")

	require.NoError(t, err)
	assert.Equal(t, "page-123", pageID)
}

func TestClient_PublishReport_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"parent not found"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestNotionClient(srv.URL)
	_, err := c.PublishReport(context.Background(), "missing-parent", "标题", "正文")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: create report page")
}

func TestBodyBlocks(t *testing.T) {
	t.Parallel()

	t.Run("headings and paragraphs split on blank lines", func(t *testing.T) {
		t.Parallel()
		blocks := bodyBlocks("## 结论\n\n可行。\n\n\n\n## 风险\n\n政策风险为主。")
		require.Len(t, blocks, 4)
		assert.Equal(t, "heading_2", string(blocks[0].GetType()))
		assert.Equal(t, "paragraph", string(blocks[1].GetType()))
		assert.Equal(t, "heading_2", string(blocks[2].GetType()))
	})

	t.Run("long paragraph truncated to the notion limit", func(t *testing.T) {
		t.Parallel()
		blocks := bodyBlocks(strings.Repeat("a", 3000))
		require.Len(t, blocks, 1)
	})

	t.Run("empty body yields no blocks", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, bodyBlocks("  \n\n  "))
	})
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Len(t, truncate(strings.Repeat("x", 10), 4), 4)
}
