package configbuilder

import (
	"fmt"

	"github.com/moegate/moegate/internal/config"
	"github.com/moegate/moegate/internal/llm"
	llmollama "github.com/moegate/moegate/internal/llm/providers/ollama"
	llmopenai "github.com/moegate/moegate/internal/llm/providers/openai"
	"github.com/moegate/moegate/internal/routing"
)

// BuildRegistryFromConfig constructs a provider registry with one model route
// per configured expert. The fallback expert is the default model.
func BuildRegistryFromConfig(cfg *config.Config) (*llm.Registry, error) {
	reg := llm.NewRegistry()

	for name, pCfg := range cfg.Providers {
		p, err := buildProvider(name, pCfg)
		if err != nil {
			return nil, err
		}
		reg.RegisterProvider(name, p)
	}

	for name, eCfg := range cfg.Experts {
		reg.RegisterModel(eCfg.Model, llm.ModelRoute{
			Provider:    eCfg.Provider,
			Model:       eCfg.Model,
			Temperature: eCfg.Temperature,
			MaxTokens:   eCfg.MaxTokens,
		}, name == string(routing.RoleFallback))
	}

	if _, _, err := reg.Resolve(""); err != nil {
		return nil, err
	}

	return reg, nil
}

func buildProvider(name string, cfg config.ProviderConfig) (llm.Provider, error) {
	switch cfg.Type {
	case "openai", "openrouter", "vllm", "lmstudio", "custom":
		return llmopenai.NewProvider(name, cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	case "ollama":
		return llmollama.NewProvider(name, cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.Type, name)
	}
}
