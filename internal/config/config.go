package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type LLMConfig struct {
	Provider string `mapstructure:"provider" validate:"oneof=gemini openai"`
	Model    string `mapstructure:"model" validate:"required"`
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey   string `mapstructure:"api_key"`
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigin  string        `mapstructure:"allowed_origin" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
}

type AgentConfig struct {
	MaxTurns         int    `mapstructure:"max_turns" validate:"min=1"`
	SystemPromptPath string `mapstructure:"system_prompt_path" validate:"required"`
}

type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path" validate:"required_if=Enabled true"`
}

type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Backend BackendConfig `mapstructure:"backend"`
	Server  ServerConfig  `mapstructure:"server"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Storage StorageConfig `mapstructure:"storage"`
}

// envAliases are the plain variable names the deployment already uses. Every
// key can also be set as SCHOOLBOT_<SECTION>_<KEY>.
var envAliases = map[string]string{
	"llm.api_key":           "API_KEY",
	"backend.base_url":      "BACKEND_URL",
	"server.allowed_origin": "FRONTEND_URL",
}

// Load reads configuration from path, or from schoolbot.yaml in the working
// directory or $HOME/.schoolbot when path is empty. A missing default file is
// not an error; defaults and the environment are enough to run.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("schoolbot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.schoolbot")
	}

	setDefaults(v)

	v.SetEnvPrefix("SCHOOLBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envKey := "SCHOOLBOT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("backend.base_url", "http://localhost:3010")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origin", "http://localhost:3015")
	v.SetDefault("server.request_timeout", time.Duration(0))
	v.SetDefault("agent.max_turns", 10)
	v.SetDefault("agent.system_prompt_path", "prompts/system_prompt.txt")
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".schoolbot", "traces.db"))
}

// expandEnv resolves a "${VAR}" value from the environment.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}

// Validate checks field constraints and reports the first violation by its
// config key.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			key := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
			return fmt.Errorf("invalid config %s: failed %s %s", key, fe.Tag(), fe.Param())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
