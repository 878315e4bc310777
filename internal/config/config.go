// Package config loads chapterdesk settings from YAML, the environment and
// command line overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	BackendAPI    = "api"
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

type APIConfig struct {
	BaseURL  string        `yaml:"base_url" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
	CacheDir string        `yaml:"cache_dir,omitempty"`
	NoCache  bool          `yaml:"no_cache,omitempty"`
	Watch    bool          `yaml:"watch"`
}

type ConversionConfig struct {
	Backend  string `yaml:"backend" validate:"required,oneof=api ollama openai"`
	Model    string `yaml:"model,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	// APIKey is only read from the environment.
	APIKey string `yaml:"-"`
}

type UIConfig struct {
	Theme          string        `yaml:"theme" validate:"required,oneof=dark light"`
	AltScreen      bool          `yaml:"alt_screen"`
	Mouse          bool          `yaml:"mouse"`
	PanelHideDelay time.Duration `yaml:"panel_hide_delay" validate:"gte=0"`
	SearchDebounce time.Duration `yaml:"search_debounce" validate:"gte=0"`
	ToastDuration  time.Duration `yaml:"toast_duration" validate:"gte=0"`
	PageSize       int           `yaml:"page_size" validate:"min=1,max=100"`
	SettingsPath   string        `yaml:"settings_path,omitempty"`
}

type Config struct {
	API        APIConfig        `yaml:"api"`
	Conversion ConversionConfig `yaml:"conversion"`
	UI         UIConfig         `yaml:"ui"`
	Logging    LoggerConfig     `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
			Watch:   true,
		},
		Conversion: ConversionConfig{Backend: BackendAPI},
		UI: UIConfig{
			Theme:          "dark",
			AltScreen:      true,
			Mouse:          true,
			PanelHideDelay: 220 * time.Millisecond,
			SearchDebounce: 300 * time.Millisecond,
			ToastDuration:  4 * time.Second,
			PageSize:       20,
		},
		Logging: LoggerConfig{
			Level: "none",
			Mode:  "overwrite",
		},
	}
}

// DefaultPath is config.yaml under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chapterdesk", "config.yaml")
}

// Load reads .env, then the YAML file at path (or the default location when
// path is empty and the file exists) and applies environment overrides. The
// result is not validated; callers apply flag overrides and call Validate.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return LoadWith(path, os.Getenv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decodeYAML(data, cfg); err != nil {
				return nil, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	cfg.applyEnv(getenv)
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.API.BaseURL, "CHAPTERDESK_API_URL")
	set(&c.Conversion.Backend, "CHAPTERDESK_CONVERTER")
	set(&c.UI.Theme, "CHAPTERDESK_THEME")
	set(&c.Logging.Level, "CHAPTERDESK_LOG_LEVEL")
	set(&c.Logging.Destination, "CHAPTERDESK_LOG_FILE")

	switch c.Conversion.Backend {
	case BackendOllama:
		set(&c.Conversion.Endpoint, "OLLAMA_HOST")
		set(&c.Conversion.Model, "OLLAMA_MODEL")
	case BackendOpenAI:
		set(&c.Conversion.Endpoint, "OPENAI_BASE_URL")
		set(&c.Conversion.Model, "OPENAI_MODEL")
		set(&c.Conversion.APIKey, "OPENAI_API_KEY")
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and cross-field rules. Every problem is
// reported, combined with multierr.
func (c *Config) Validate() error {
	var result error
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			result = multierr.Append(result, fmt.Errorf("%s: failed %q validation (value %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value()))
		}
	}
	if c.Conversion.Backend == BackendOpenAI && strings.TrimSpace(c.Conversion.APIKey) == "" {
		result = multierr.Append(result, errors.New("conversion: openai backend requires OPENAI_API_KEY"))
	}
	return result
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// Marshal renders the effective configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
