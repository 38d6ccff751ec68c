package gateway

import (
	"strings"

	"github.com/zhouzirui/research-relay/internal/config"
)

const defaultSystemPrompt = `You are a research assistant. Answer the user's question thoroughly and accurately.

Guidelines:
- Start with a direct answer, then add supporting detail.
- Separate paragraphs with a blank line.
- Say so plainly when you are unsure or the information may be outdated.
- Cite sources by name when you rely on them.`

// SystemPrompt returns the configured system prompt or the built-in research prompt.
func SystemPrompt(cfg config.GatewayConfig) string {
	if p := strings.TrimSpace(cfg.SystemPrompt); p != "" {
		return p
	}
	return defaultSystemPrompt
}
