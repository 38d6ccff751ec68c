package gateway

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"

	"github.com/zhouzirui/research-relay/internal/config"
)

type openAIGateway struct {
	client openai.Client
	cfg    config.GatewayConfig
	system string
}

func newOpenAI(cfg config.GatewayConfig) *openAIGateway {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAIGateway{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		system: SystemPrompt(cfg),
	}
}

func (g *openAIGateway) Invoke(ctx context.Context, query string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(g.system),
			openai.UserMessage(query),
		},
	}
	if g.cfg.Temperature != nil {
		params.Temperature = openai.Float(*g.cfg.Temperature)
	}
	if g.cfg.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*g.cfg.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrap(config.ProviderOpenAI, errors.Wrap(err, "chat completion"))
	}
	if len(resp.Choices) == 0 {
		return "", wrap(config.ProviderOpenAI, errors.New("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}
