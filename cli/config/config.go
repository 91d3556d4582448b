package config

import (
	"fmt"
	"time"
)

// Config represents a deckhand.yaml configuration file.
// All values are optional and act as defaults for deckhand run flags.
// CLI flags always override config values.
type Config struct {
	Plan         string             `yaml:"plan"`
	TemplateRef  string             `yaml:"template_ref"`
	JournalDir   string             `yaml:"journal_dir"`
	Collaborator CollaboratorConfig `yaml:"collaborator"`
	Storage      StorageConfig      `yaml:"storage"`
	State        StateConfig        `yaml:"state"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Notify       NotifyConfig       `yaml:"notify"`
}

// CollaboratorConfig holds the collaborator service endpoint and credentials.
type CollaboratorConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// StorageConfig selects the artifact byte store backend.
type StorageConfig struct {
	Backend     string `yaml:"backend"` // "fs" or "s3"
	Path        string `yaml:"path"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// StateConfig selects the run state store backend.
type StateConfig struct {
	Backend string `yaml:"backend"` // "memory" or "sqlite"
	Path    string `yaml:"path"`
}

// PipelineConfig holds per-task execution tuning.
type PipelineConfig struct {
	ResearchTimeout Duration `yaml:"research_timeout,omitempty"`
	RenderTimeout   Duration `yaml:"render_timeout,omitempty"`
	MaxAttempts     int      `yaml:"max_attempts,omitempty"`
	BaseDelay       Duration `yaml:"base_delay,omitempty"`
	MaxDelay        Duration `yaml:"max_delay,omitempty"`
}

// NotifyConfig selects the notification adapter.
type NotifyConfig struct {
	Type    string            `yaml:"type"` // "webhook", "redis", "telegram", or empty
	URL     string            `yaml:"url,omitempty"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
	// Telegram adapter fields.
	Token  string `yaml:"token,omitempty"`
	ChatID string `yaml:"chat_id,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks cross-field constraints that YAML decoding cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "", "fs":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage backend s3 requires a bucket")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.State.Backend {
	case "", "memory":
	case "sqlite":
		if c.State.Path == "" {
			return fmt.Errorf("state backend sqlite requires a path")
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}

	switch c.Notify.Type {
	case "", "webhook", "redis", "telegram":
	default:
		return fmt.Errorf("unknown notify adapter %q", c.Notify.Type)
	}

	return nil
}
