package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/moegate/moegate/internal/routing"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Experts   map[string]ExpertConfig   `mapstructure:"experts"`
	Router    RouterConfig              `mapstructure:"router"`
	RAG       RAGConfig                 `mapstructure:"rag"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Server    ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents LLM provider configuration such as OpenAI, Ollama, or custom gateways.
type ProviderConfig struct {
	Type      string        `mapstructure:"type"`       // openai, openrouter, ollama, vllm, lmstudio, custom
	BaseURL   string        `mapstructure:"base_url"`   // API base URL
	APIKey    string        `mapstructure:"api_key"`    // optional API key
	Timeout   time.Duration `mapstructure:"timeout"`    // request timeout
	MaxTokens int           `mapstructure:"max_tokens"` // optional provider-level token cap
}

// ExpertConfig binds one expert role to a provider, a concrete model, and
// call parameters. The map key in Config.Experts is the role name.
type ExpertConfig struct {
	Provider    string   `mapstructure:"provider"`
	Model       string   `mapstructure:"model"`
	Temperature float64  `mapstructure:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens"`
	Backups     []string `mapstructure:"backups"` // role names; replaces the default chain when set
}

// RouterConfig controls dispatch behaviour: circuit breaking, fan-out and
// response scoring.
type RouterConfig struct {
	FailureThreshold     int      `mapstructure:"failure_threshold"`      // failures before quarantine
	Fanout               int      `mapstructure:"fanout"`                 // default quorum size k
	QuorumTimeoutSeconds int      `mapstructure:"quorum_timeout_seconds"` // per fan-out member deadline
	HedgingPhrases       []string `mapstructure:"hedging_phrases"`        // low-confidence markers for scoring
}

// RAGConfig controls retrieval augmentation passthrough.
type RAGConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TopK           int    `mapstructure:"top_k"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: MOEGATE_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MOEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("router.failure_threshold", 3)
	v.SetDefault("router.fanout", 3)
	v.SetDefault("router.quorum_timeout_seconds", 120)
	v.SetDefault("router.hedging_phrases", []string{})

	v.SetDefault("rag.enabled", false)
	v.SetDefault("rag.embedding_model", "nomic-embed-text")
	v.SetDefault("rag.top_k", 5)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.metrics_enabled", true)
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	for name, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("provider %q must define type", name)
		}
	}

	for _, role := range routing.Roles() {
		if _, ok := c.Experts[string(role)]; !ok {
			return fmt.Errorf("expert role %q must be configured", role)
		}
	}

	for name, e := range c.Experts {
		role, err := routing.ParseRole(name)
		if err != nil {
			return err
		}

		if e.Provider == "" {
			return fmt.Errorf("expert %q must reference provider", name)
		}
		if _, ok := c.Providers[e.Provider]; !ok {
			return fmt.Errorf("expert %q references unknown provider %q", name, e.Provider)
		}
		if e.Model == "" {
			return fmt.Errorf("expert %q must define model", name)
		}
		if e.Temperature < 0 || e.Temperature > 2 {
			return fmt.Errorf("expert %q temperature must be within [0,2]", name)
		}
		if e.MaxTokens < 0 {
			return fmt.Errorf("expert %q max_tokens cannot be negative", name)
		}

		for _, b := range e.Backups {
			backup, err := routing.ParseRole(b)
			if err != nil {
				return fmt.Errorf("expert %q: %w", name, err)
			}
			if backup == role {
				return fmt.Errorf("expert %q backup chain lists itself", name)
			}
		}
	}

	if c.Router.FailureThreshold < 1 {
		return errors.New("router.failure_threshold must be >= 1")
	}
	if c.Router.Fanout < 1 {
		return errors.New("router.fanout must be >= 1")
	}
	if c.Router.QuorumTimeoutSeconds <= 0 {
		return errors.New("router.quorum_timeout_seconds must be > 0")
	}

	if c.RAG.TopK < 0 {
		return errors.New("rag.top_k must be >= 0")
	}
	if c.RAG.Enabled && strings.TrimSpace(c.RAG.EmbeddingModel) == "" {
		return errors.New("rag.embedding_model must be set when rag.enabled is true")
	}

	return nil
}

// ExpertBindings converts the experts section into role-keyed bindings and
// backup overrides for the routing registry.
func (c *Config) ExpertBindings() (map[routing.Role]string, map[routing.Role][]routing.Role) {
	bindings := make(map[routing.Role]string, len(c.Experts))
	overrides := make(map[routing.Role][]routing.Role)
	for name, e := range c.Experts {
		role := routing.Role(name)
		bindings[role] = e.Model
		if len(e.Backups) > 0 {
			chain := make([]routing.Role, 0, len(e.Backups))
			for _, b := range e.Backups {
				chain = append(chain, routing.Role(b))
			}
			overrides[role] = chain
		}
	}
	return bindings, overrides
}
