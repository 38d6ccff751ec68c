package gateway

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"github.com/zhouzirui/research-relay/internal/config"
)

const anthropicDefaultMaxTokens = 4096

type anthropicGateway struct {
	client anthropic.Client
	cfg    config.GatewayConfig
	system string
}

func newAnthropic(cfg config.GatewayConfig) *anthropicGateway {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicGateway{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		system: SystemPrompt(cfg),
	}
}

func (g *anthropicGateway) Invoke(ctx context.Context, query string) (string, error) {
	maxTokens := int64(anthropicDefaultMaxTokens)
	if g.cfg.MaxTokens != nil {
		maxTokens = int64(*g.cfg.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.cfg.Model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: g.system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	}
	if g.cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*g.cfg.Temperature)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", wrap(config.ProviderAnthropic, errors.Wrap(err, "create message"))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return text.String(), nil
}
