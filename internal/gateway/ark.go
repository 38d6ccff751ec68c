package gateway

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/zhouzirui/research-relay/internal/config"
)

// chainGateway runs a system+query prompt through an eino chain.
type chainGateway struct {
	provider string
	system   string
	chain    compose.Runnable[map[string]any, *schema.Message]
}

func newArk(ctx context.Context, cfg config.GatewayConfig) (Gateway, error) {
	chatModel, err := newArkChatModel(ctx, cfg)
	if err != nil {
		return nil, wrap(config.ProviderArk, errors.Wrap(err, "create ark chat model"))
	}
	return newChainGateway(ctx, config.ProviderArk, chatModel, SystemPrompt(cfg))
}

func newArkChatModel(ctx context.Context, cfg config.GatewayConfig) (model.ChatModel, error) {
	var temperature *float32
	if cfg.Temperature != nil {
		val := float32(*cfg.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if cfg.MaxTokens != nil {
		val := *cfg.MaxTokens
		maxTokens = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      cfg.APIKey,
		AccessKey:   cfg.AccessKey,
		SecretKey:   cfg.SecretKey,
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
}

func newChainGateway(ctx context.Context, provider string, chatModel model.ChatModel, system string) (*chainGateway, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, wrap(provider, errors.Wrap(err, "compile chat chain"))
	}

	return &chainGateway{provider: provider, system: system, chain: runnable}, nil
}

// Invoke runs the chain to completion.
func (g *chainGateway) Invoke(ctx context.Context, query string) (string, error) {
	response, err := g.chain.Invoke(ctx, map[string]any{
		"system": g.system,
		"query":  query,
	})
	if err != nil {
		return "", wrap(g.provider, errors.Wrap(err, "run chat chain"))
	}
	return response.Content, nil
}
