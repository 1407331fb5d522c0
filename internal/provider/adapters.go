package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/meridian-group/decision-cli/internal/resilience"
	"github.com/meridian-group/decision-cli/pkg/anthropic"
	"github.com/meridian-group/decision-cli/pkg/openaichat"
	"github.com/meridian-group/decision-cli/pkg/perplexity"
)

// AnthropicCompleter adapts pkg/anthropic to the Completer interface.
type AnthropicCompleter struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropic wraps an Anthropic client.
func NewAnthropic(client anthropic.Client, defaultModel string) *AnthropicCompleter {
	return &AnthropicCompleter{client: client, defaultModel: defaultModel}
}

func (c *AnthropicCompleter) Name() string { return "anthropic" }

func (c *AnthropicCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.UserMessage}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, resilience.ClassifyProviderError(c.Name(), 0, err)
	}

	content := resp.Text()
	if content == "" {
		return nil, resilience.NewProviderError(c.Name(), resilience.KindMalformed,
			eris.New("empty completion content"))
	}

	return &Response{
		Content:      content,
		Model:        resp.Model,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// ChatCompleter adapts an OpenAI-compatible endpoint to Completer.
type ChatCompleter struct {
	name         string
	client       openaichat.Client
	defaultModel string
}

// NewChat wraps an OpenAI-compatible client under the given provider name.
func NewChat(name string, client openaichat.Client, defaultModel string) *ChatCompleter {
	return &ChatCompleter{name: name, client: client, defaultModel: defaultModel}
}

func (c *ChatCompleter) Name() string { return c.name }

func (c *ChatCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	var maxTokens *int
	if req.MaxTokens > 0 {
		maxTokens = &req.MaxTokens
	}

	messages := []openaichat.Message{}
	if req.System != "" {
		messages = append(messages, openaichat.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, openaichat.Message{Role: "user", Content: req.UserMessage})

	resp, err := c.client.ChatCompletion(ctx, openaichat.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, resilience.ClassifyProviderError(c.Name(), 0, err)
	}
	if len(resp.Choices) == 0 {
		return nil, resilience.NewProviderError(c.Name(), resilience.KindMalformed,
			eris.New("no completion choices"))
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// PerplexityCompleter adapts pkg/perplexity to Completer.
type PerplexityCompleter struct {
	client       perplexity.Client
	defaultModel string
}

// NewPerplexity wraps a Perplexity client.
func NewPerplexity(client perplexity.Client, defaultModel string) *PerplexityCompleter {
	return &PerplexityCompleter{client: client, defaultModel: defaultModel}
}

func (c *PerplexityCompleter) Name() string { return "perplexity" }

func (c *PerplexityCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	var maxTokens *int
	if req.MaxTokens > 0 {
		maxTokens = &req.MaxTokens
	}

	messages := []perplexity.Message{}
	if req.System != "" {
		messages = append(messages, perplexity.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, perplexity.Message{Role: "user", Content: req.UserMessage})

	resp, err := c.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, resilience.ClassifyProviderError(c.Name(), 0, err)
	}
	if len(resp.Choices) == 0 {
		return nil, resilience.NewProviderError(c.Name(), resilience.KindMalformed,
			eris.New("no completion choices"))
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
