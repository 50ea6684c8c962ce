package falcon

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/go-falcon/internal/auth"
)

// Config carries the settings needed to build a Client. Use WithConfig to
// apply it.
type Config struct {
	BaseURL            string        `env:"FALCON_BASE_URL, default=https://api.crowdstrike.com" yaml:"base_url"`
	ClientID           string        `env:"FALCON_CLIENT_ID" yaml:"client_id"`
	ClientSecret       string        `env:"FALCON_CLIENT_SECRET" yaml:"client_secret"`
	MemberCID          string        `env:"FALCON_MEMBER_CID" yaml:"member_cid"`
	UserAgent          string        `env:"FALCON_USER_AGENT" yaml:"user_agent"`
	Timeout            time.Duration `env:"FALCON_TIMEOUT, default=30s" yaml:"timeout"`
	TokenRefreshMargin time.Duration `env:"FALCON_TOKEN_REFRESH_MARGIN, default=30s" yaml:"token_refresh_margin"`
}

// ConfigFromEnv reads the FALCON_* environment variables. Any dotenv files
// given are loaded first; they never override variables already set.
func ConfigFromEnv(ctx context.Context, dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) > 0 {
		if err := godotenv.Load(dotenvFiles...); err != nil {
			return nil, fmt.Errorf("falcon: loading dotenv: %w", err)
		}
	}
	return configFromLookuper(ctx, envconfig.OsLookuper())
}

func configFromLookuper(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("falcon: reading environment: %w", err)
	}
	return &cfg, nil
}

// LoadConfigFile reads a YAML config file. Missing fields get the same
// defaults as ConfigFromEnv.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("falcon: reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("falcon: parsing config %s: %w", path, err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TokenRefreshMargin == 0 {
		cfg.TokenRefreshMargin = auth.DefaultRefreshMargin
	}
	return &cfg, nil
}
