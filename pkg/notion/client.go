// Package notion wraps the Notion API for publishing rendered decision reports.
package notion

import (
	"context"
	"net/http"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Notion API operations used for report export.
type Client interface {
	PublishReport(ctx context.Context, parentPageID, title, body string) (string, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default Notion rate limit (3 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *notionClient) {
		c.apiOpts = append(c.apiOpts, notionapi.WithHTTPClient(hc))
	}
}

// notionClient implements Client by wrapping a *notionapi.Client.
type notionClient struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
	apiOpts []notionapi.ClientOption
}

// NewClient creates a new Notion client with the given integration token.
// By default, API calls are throttled to 3 req/s (Notion's rate limit).
func NewClient(token string, opts ...ClientOption) Client {
	c := &notionClient{
		limiter: rate.NewLimiter(3, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.inner = notionapi.NewClient(notionapi.Token(token), c.apiOpts...)
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// PublishReport creates a child page under parentPageID holding the rendered
// report. Returns the created page ID. Notion caps rich text blocks at 2000
// characters, so the body is split into paragraph blocks per line group.
func (c *notionClient) PublishReport(ctx context.Context, parentPageID, title, body string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", eris.Wrap(err, "notion: rate limit")
	}

	page, err := c.inner.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: notionapi.PageID(parentPageID),
		},
		Properties: notionapi.Properties{
			"title": notionapi.TitleProperty{
				Title: []notionapi.RichText{{Text: &notionapi.Text{Content: title}}},
			},
		},
		Children: bodyBlocks(body),
	})
	if err != nil {
		return "", eris.Wrap(err, "notion: create report page")
	}

	return string(page.ID), nil
}

// bodyBlocks converts report text into paragraph and heading blocks.
func bodyBlocks(body string) []notionapi.Block {
	var blocks []notionapi.Block
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if title, ok := strings.CutPrefix(para, "## "); ok {
			blocks = append(blocks, &notionapi.Heading2Block{
				BasicBlock: notionapi.BasicBlock{
					Object: notionapi.ObjectTypeBlock,
					Type:   notionapi.BlockTypeHeading2,
				},
				Heading2: notionapi.Heading{
					RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: title}}},
				},
			})
			continue
		}
		blocks = append(blocks, &notionapi.ParagraphBlock{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeParagraph,
			},
			Paragraph: notionapi.Paragraph{
				RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: truncate(para, 2000)}}},
			},
		})
	}
	return blocks
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
