package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrConfig 标记缺失或非法的配置。
var ErrConfig = errors.New("configuration error")

// Providers understood by the gateway factory.
const (
	ProviderArk       = "ark"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderEcho      = "echo"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Gateway GatewayConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := LoadServer()
	if err != nil {
		return nil, err
	}

	gw, err := LoadGateway()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Gateway: gw}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr      string
	StaticDir string
}

// LoadServer 解析服务器监听地址与静态资源目录。
func LoadServer() (ServerConfig, error) {
	addr, err := ParseAddr(strings.TrimSpace(os.Getenv("PORT")))
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		Addr:      addr,
		StaticDir: getEnvOrDefault("STATIC_DIR", "dist"),
	}, nil
}

// ParseAddr turns a PORT value into a listen address. Empty means the default port.
func ParseAddr(port string) (string, error) {
	if port == "" {
		port = DefaultPort
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3000" 或 "127.0.0.1:3000"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", errors.Wrapf(ErrConfig, "invalid PORT value: %q", port)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", errors.Wrapf(ErrConfig, "invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// DefaultPort is shared by the server and the chat client's URL derivation.
const DefaultPort = "3000"

// GatewayConfig 描述应答网关（大模型）相关配置。每次查询都会重新加载。
type GatewayConfig struct {
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	APIKey       string   `yaml:"apiKey"`
	AccessKey    string   `yaml:"accessKey"`
	SecretKey    string   `yaml:"secretKey"`
	BaseURL      string   `yaml:"baseURL"`
	Region       string   `yaml:"region"`
	Temperature  *float64 `yaml:"temperature"`
	MaxTokens    *int     `yaml:"maxTokens"`
	SystemPrompt string   `yaml:"systemPrompt"`
}

// LoadGateway reads the gateway configuration. The optional RELAY_CONFIG_FILE
// supplies defaults; environment variables take precedence.
func LoadGateway() (GatewayConfig, error) {
	var cfg GatewayConfig
	if path := strings.TrimSpace(os.Getenv("RELAY_CONFIG_FILE")); path != "" {
		fileCfg, err := loadGatewayFile(path)
		if err != nil {
			return GatewayConfig{}, err
		}
		cfg = fileCfg
	}

	temperature, err := parseOptionalFloatEnv("GATEWAY_TEMPERATURE")
	if err != nil {
		return GatewayConfig{}, err
	}
	if temperature != nil {
		cfg.Temperature = temperature
	}

	maxTokens, err := parseOptionalIntEnv("GATEWAY_MAX_TOKENS")
	if err != nil {
		return GatewayConfig{}, err
	}
	if maxTokens != nil {
		cfg.MaxTokens = maxTokens
	}

	cfg.Provider = strings.ToLower(getEnvOrDefault("GATEWAY_PROVIDER", orDefault(cfg.Provider, ProviderArk)))
	cfg.Model = firstNonEmpty(os.Getenv("GATEWAY_MODEL"), os.Getenv("Model"), cfg.Model)
	cfg.BaseURL = getEnvOrDefault("GATEWAY_BASE_URL", cfg.BaseURL)
	cfg.SystemPrompt = getEnvOrDefault("GATEWAY_SYSTEM_PROMPT", cfg.SystemPrompt)

	switch cfg.Provider {
	case ProviderArk:
		cfg.APIKey = getEnvOrDefault("ARK_API_KEY", cfg.APIKey)
		cfg.AccessKey = getEnvOrDefault("ARK_ACCESS_KEY", cfg.AccessKey)
		cfg.SecretKey = getEnvOrDefault("ARK_SECRET_KEY", cfg.SecretKey)
		cfg.Region = getEnvOrDefault("ARK_REGION", orDefault(cfg.Region, "cn-beijing"))
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://ark.cn-beijing.volces.com/api/v3"
		}
	case ProviderOpenAI:
		cfg.APIKey = getEnvOrDefault("OPENAI_API_KEY", cfg.APIKey)
	case ProviderAnthropic:
		cfg.APIKey = getEnvOrDefault("ANTHROPIC_API_KEY", cfg.APIKey)
	}

	return cfg, nil
}

// Validate reports why the configuration cannot be used to build a gateway.
func (c GatewayConfig) Validate() error {
	switch c.Provider {
	case ProviderEcho:
		return nil
	case ProviderArk:
		if c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "") {
			return errors.Wrap(ErrConfig, "ark requires ARK_API_KEY or ARK_ACCESS_KEY + ARK_SECRET_KEY")
		}
	case ProviderOpenAI, ProviderAnthropic:
		if c.APIKey == "" {
			return errors.Wrapf(ErrConfig, "%s requires an API key", c.Provider)
		}
	case "":
		return errors.Wrap(ErrConfig, "gateway provider is empty")
	default:
		return errors.Wrapf(ErrConfig, "unknown gateway provider %q", c.Provider)
	}

	if c.Model == "" {
		return errors.Wrap(ErrConfig, "model is required")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return errors.Wrapf(ErrConfig, "temperature %.2f out of range [0, 2]", *c.Temperature)
	}
	if c.MaxTokens != nil && *c.MaxTokens <= 0 {
		return errors.Wrapf(ErrConfig, "max tokens must be positive, got %d", *c.MaxTokens)
	}
	return nil
}

func loadGatewayFile(path string) (GatewayConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return GatewayConfig{}, errors.Wrapf(ErrConfig, "read config file %s: %v", path, err)
	}

	var cfg GatewayConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return GatewayConfig{}, errors.Wrapf(ErrConfig, "parse config file %s: %v", path, err)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "invalid %s value %q: %v", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "invalid %s value %q: %v", key, value, err)
	}
	return &val, nil
}
