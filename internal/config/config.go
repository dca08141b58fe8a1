package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MCP client transport types.
const (
	ClientTypeSSE            = "sse"
	ClientTypeStreamableHTTP = "streamable_http"
	ClientTypeStdio          = "stdio"
)

// Completion service providers.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Tool dispatch strategies.
const (
	DispatchFunctionCalling = "function_calling"
	DispatchKeyword         = "keyword"
)

// Config holds the application configuration
type Config struct {
	LLM        LLMConfig         `mapstructure:"llm"`
	Server     ServerConfig      `mapstructure:"server"`
	History    HistoryConfig     `mapstructure:"history"`
	Agent      AgentConfig       `mapstructure:"agent"`
	Tools      ToolsConfig       `mapstructure:"tools"`
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers" validate:"dive"`
	Log        LogConfig         `mapstructure:"log"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider             string        `mapstructure:"provider" validate:"oneof=openai azure"`
	BaseURL              string        `mapstructure:"base_url"`
	APIKey               string        `mapstructure:"api_key"`
	Model                string        `mapstructure:"model" validate:"required"`
	SystemPrompt         string        `mapstructure:"system_prompt"`
	Timeout              time.Duration `mapstructure:"timeout" validate:"gt=0"`
	PlanTemperature      float32       `mapstructure:"plan_temperature" validate:"gte=0,lte=2"`
	ExecuteTemperature   float32       `mapstructure:"execute_temperature" validate:"gte=0,lte=2"`
	SynthesisTemperature float32       `mapstructure:"synthesis_temperature" validate:"gte=0,lte=2"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port" validate:"required"`
}

// HistoryConfig holds the conversation store configuration
type HistoryConfig struct {
	DBPath          string `mapstructure:"db_path" validate:"required"`
	MaxMessages     int    `mapstructure:"max_messages" validate:"gt=0"`
	ContextMessages int    `mapstructure:"context_messages" validate:"gte=0"`
}

// AgentConfig controls how the agent dispatches tools.
type AgentConfig struct {
	Dispatch            string `mapstructure:"dispatch" validate:"oneof=function_calling keyword"`
	MaxToolResultLength int    `mapstructure:"max_tool_result_length" validate:"gt=0"`
}

// ToolsConfig holds settings for the builtin tools.
type ToolsConfig struct {
	WorkspaceDir string        `mapstructure:"workspace_dir"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
	Search       SearchConfig  `mapstructure:"search"`
	Scrape       ScrapeConfig  `mapstructure:"scrape"`
}

// SearchConfig selects the web search backend.
type SearchConfig struct {
	Provider   string `mapstructure:"provider" validate:"oneof=duckduckgo searxng"`
	SearXNGURL string `mapstructure:"searxng_url" validate:"required_if=Provider searxng"`
	MaxResults int    `mapstructure:"max_results" validate:"gt=0"`
}

// ScrapeConfig holds web scraping limits.
type ScrapeConfig struct {
	MaxLength int `mapstructure:"max_length" validate:"gt=0"`
}

// MCPServerConfig describes a remote MCP server whose tools are registered at startup.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    string            `mapstructure:"type" validate:"oneof=sse streamable_http stdio"`
	URL     string            `mapstructure:"url" validate:"required_unless=Type stdio"`
	Command string            `mapstructure:"command" validate:"required_if=Type stdio"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	Headers map[string]string `mapstructure:"headers"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4-turbo-preview")
	v.SetDefault("llm.system_prompt", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.plan_temperature", 0.1)
	v.SetDefault("llm.execute_temperature", 0.2)
	v.SetDefault("llm.synthesis_temperature", 0.3)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8001")

	v.SetDefault("history.db_path", "data/conversations.db")
	v.SetDefault("history.max_messages", 50)
	v.SetDefault("history.context_messages", 5)

	v.SetDefault("agent.dispatch", DispatchFunctionCalling)
	v.SetDefault("agent.max_tool_result_length", 2000)

	v.SetDefault("tools.workspace_dir", "")
	v.SetDefault("tools.http_timeout", 10*time.Second)
	v.SetDefault("tools.search.provider", "duckduckgo")
	v.SetDefault("tools.search.searxng_url", "")
	v.SetDefault("tools.search.max_results", 5)
	v.SetDefault("tools.scrape.max_length", 2000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load loads the configuration from $CONFIG_PATH or ./config.yaml, then
// applies CIDION_* environment overrides. A missing config file is fine.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("cidion")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "CIDION_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks struct constraints and reports the first violation.
func Validate(cfg *Config) error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("invalid config: %s failed on %q (value %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
