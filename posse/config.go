package posse

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// MastodonConfig holds Mastodon credentials.
type MastodonConfig struct {
	Token    string
	Instance string
}

// Validate checks that the token has a plausible length and the instance
// looks like a DNS name.
func (c MastodonConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Token, validation.Required, validation.Length(11, 0)),
		validation.Field(&c.Instance, validation.Required, validation.By(mustContainDot)),
	)
}

// BlueskyConfig holds Bluesky credentials. Password should be an app
// password, not the account password.
type BlueskyConfig struct {
	Username string
	Password string
}

// Validate checks that the username looks like a handle and a password is
// present.
func (c BlueskyConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required, validation.By(mustContainDot)),
		validation.Field(&c.Password, validation.Required),
	)
}

func mustContainDot(value interface{}) error {
	s, _ := value.(string)
	if !strings.Contains(s, ".") {
		return errors.New("must contain a dot")
	}
	return nil
}

// Config is the immutable configuration for one syndication run. It is
// resolved once at entry and passed down to every component; nothing below
// the entrypoint reads ambient state.
type Config struct {
	// SiteURL is the canonical site root, e.g. "https://example.com".
	SiteURL string
	// ContentDir is the ephemera content tree.
	ContentDir string
	// PublicDir is the public asset root for image paths starting with "/".
	PublicDir string
	// AssetsDir is the build-output directory of pre-optimized images.
	AssetsDir string
	// Cutoff excludes content authored before syndication existed.
	Cutoff    time.Time
	DryRun    bool
	MaxPosts  int
	PostDelay time.Duration

	// Mastodon and Bluesky are nil when the platform is not configured or
	// its credentials failed validation.
	Mastodon *MastodonConfig
	Bluesky  *BlueskyConfig
}

// ConfiguredPlatforms is the number of platforms with valid credentials.
func (c *Config) ConfiguredPlatforms() int {
	n := 0
	if c.Mastodon != nil {
		n++
	}
	if c.Bluesky != nil {
		n++
	}
	return n
}

// LoadConfig reads configuration from an optional posse.yaml file and the
// environment, validates platform credentials, and returns the resolved
// Config. Invalid platform credentials disable that platform with a warning;
// they are never fatal.
func LoadConfig(configFile string, logger *slog.Logger) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POSSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	v.SetDefault("content_dir", filepath.Join("src", "content", "ephemera"))
	v.SetDefault("public_dir", "public")
	v.SetDefault("assets_dir", filepath.Join("dist", "_astro"))
	v.SetDefault("cutoff", "2025-08-30")
	v.SetDefault("dry_run", false)
	v.SetDefault("max_posts", 3)
	v.SetDefault("post_delay", 2*time.Second)

	// Historical variable names kept for compatibility with existing
	// deployments.
	v.BindEnv("mastodon.token", "POSSE_MASTODON__TOKEN", "MASTODON_ACCESS_TOKEN")
	v.BindEnv("mastodon.instance", "POSSE_MASTODON__INSTANCE", "MASTODON_INSTANCE")
	v.BindEnv("bluesky.username", "POSSE_BLUESKY__USERNAME", "BLUESKY_USERNAME")
	v.BindEnv("bluesky.password", "POSSE_BLUESKY__PASSWORD", "BLUESKY_PASSWORD")
	v.BindEnv("dry_run", "POSSE_DRY_RUN", "SYNDICATION_DRY_RUN")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("posse")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cutoff, err := dateparse.ParseIn(v.GetString("cutoff"), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse cutoff %q: %w", v.GetString("cutoff"), err)
	}

	cfg := &Config{
		SiteURL:    strings.TrimSuffix(v.GetString("site_url"), "/"),
		ContentDir: v.GetString("content_dir"),
		PublicDir:  v.GetString("public_dir"),
		AssetsDir:  v.GetString("assets_dir"),
		Cutoff:     cutoff,
		DryRun:     v.GetBool("dry_run"),
		MaxPosts:   v.GetInt("max_posts"),
		PostDelay:  v.GetDuration("post_delay"),
	}

	if cfg.SiteURL == "" {
		return nil, errors.New("site_url is required")
	}
	if cfg.MaxPosts < 1 {
		cfg.MaxPosts = 3
	}

	if token, instance := v.GetString("mastodon.token"), v.GetString("mastodon.instance"); token != "" || instance != "" {
		mastodon := MastodonConfig{Token: token, Instance: instance}
		if err := mastodon.Validate(); err != nil {
			logger.Warn("mastodon disabled, invalid configuration", "error", err)
		} else {
			cfg.Mastodon = &mastodon
		}
	} else {
		logger.Debug("mastodon not configured")
	}

	if username, password := v.GetString("bluesky.username"), v.GetString("bluesky.password"); username != "" || password != "" {
		bluesky := BlueskyConfig{Username: username, Password: password}
		if err := bluesky.Validate(); err != nil {
			logger.Warn("bluesky disabled, invalid configuration", "error", err)
		} else {
			cfg.Bluesky = &bluesky
		}
	} else {
		logger.Debug("bluesky not configured")
	}

	return cfg, nil
}
