package search

import (
	"context"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/pkg/jina"
	"github.com/meridian-group/decision-cli/pkg/serper"
)

// SerperGateway adapts pkg/serper to the Gateway interface.
type SerperGateway struct {
	client serper.Client
}

// NewSerperGateway wraps a Serper client.
func NewSerperGateway(client serper.Client) *SerperGateway {
	return &SerperGateway{client: client}
}

func (g *SerperGateway) Name() string { return "serper" }

func (g *SerperGateway) Search(ctx context.Context, query string) ([]model.Source, error) {
	resp, err := g.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]model.Source, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		out = append(out, model.Source{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
	}
	return out, nil
}

// JinaGateway adapts pkg/jina to the Gateway interface.
type JinaGateway struct {
	client jina.Client
}

// NewJinaGateway wraps a Jina search client.
func NewJinaGateway(client jina.Client) *JinaGateway {
	return &JinaGateway{client: client}
}

func (g *JinaGateway) Name() string { return "jina" }

func (g *JinaGateway) Search(ctx context.Context, query string) ([]model.Source, error) {
	resp, err := g.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]model.Source, 0, len(resp.Data))
	for _, r := range resp.Data {
		snippet := r.Description
		if r.Content != "" {
			snippet = r.Content
		}
		out = append(out, model.Source{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: snippet,
		})
	}
	return out, nil
}
