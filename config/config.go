// Package config loads the storygraph server configuration from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/meikuraledutech/storygraph"
	"github.com/meikuraledutech/storygraph/log"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Environment variables that override file values.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvAddr        = "STORYGRAPH_ADDR"
	EnvLogLevel    = "STORYGRAPH_LOG_LEVEL"
	EnvOpenAIKey   = "OPENAI_API_KEY"
)

var (
	ErrUnknownItem = errors.New("config: unknown item")
	ErrInvalid     = errors.New("config: invalid configuration")
)

// Config is the top-level configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Media    MediaConfig    `toml:"media"`
	Log      LogConfig      `toml:"log"`
	Worker   WorkerConfig   `toml:"worker"`
	Defaults DefaultsConfig `toml:"defaults"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StoreConfig selects where projects are persisted. Dir is used by the
// file driver, DSN by the postgres driver.
type StoreConfig struct {
	Driver  string `toml:"driver"`
	Dir     string `toml:"dir"`
	DSN     string `toml:"dsn"`
	Project string `toml:"project"`
}

// MediaConfig points at the upload and generated-file directory.
type MediaConfig struct {
	Dir string `toml:"dir"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `toml:"level"`
}

// WorkerConfig sizes the pool that runs asynchronous generations.
type WorkerConfig struct {
	PoolSize int `toml:"pool_size"`
}

// DefaultsConfig holds generation settings consulted after node data and
// project settings.
type DefaultsConfig struct {
	LLMURL     string `toml:"llm_url"`
	LLMModel   string `toml:"llm_model"`
	LLMKey     string `toml:"llm_key"`
	ComfyUIURL string `toml:"comfyui_url"`
	ImageModel string `toml:"image_model"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":3000"},
		Store: StoreConfig{
			Driver:  DriverFile,
			Dir:     "cache",
			Project: "default",
		},
		Media:  MediaConfig{Dir: "cache/uploads"},
		Log:    LogConfig{Level: log.LevelInfo},
		Worker: WorkerConfig{PoolSize: 4},
		Defaults: DefaultsConfig{
			LLMURL:     storygraph.DefaultLLMURL,
			LLMModel:   storygraph.DefaultLLMModel,
			ComfyUIURL: storygraph.DefaultComfyUIURL,
			ImageModel: storygraph.DefaultImageModel,
		},
	}
}

// Load builds the configuration: defaults, then the file at path (if path
// is not empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := c.configFromFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse is Load for configuration held in memory. The environment is not
// consulted.
func Parse(data string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(data, c)
	if err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := checkUndecodedItems(md); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) configFromFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return checkUndecodedItems(md)
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvDatabaseURL); v != "" {
		c.Store.DSN = v
	}
	if v := getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvOpenAIKey); v != "" && c.Defaults.LLMKey == "" {
		c.Defaults.LLMKey = v
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverFile:
		if strings.TrimSpace(c.Store.Dir) == "" {
			return fmt.Errorf("%w: store.dir is required for the file driver", ErrInvalid)
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn (or %s) is required for the postgres driver", ErrInvalid, EnvDatabaseURL)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalid, c.Store.Driver)
	}
	if c.Store.Project == "" {
		return fmt.Errorf("%w: store.project is required", ErrInvalid)
	}
	if c.Media.Dir == "" {
		return fmt.Errorf("%w: media.dir is required", ErrInvalid)
	}
	if c.Worker.PoolSize <= 0 {
		return fmt.Errorf("%w: worker.pool_size must be positive", ErrInvalid)
	}
	return nil
}

// GenerationDefaults returns the [defaults] section as settings.
func (c *Config) GenerationDefaults() storygraph.Settings {
	s := storygraph.Settings{}
	put := func(k, v string) {
		if v != "" {
			s[k] = v
		}
	}
	put("llm_url", c.Defaults.LLMURL)
	put("llm_model", c.Defaults.LLMModel)
	put("llm_key", c.Defaults.LLMKey)
	put("comfyui_url", c.Defaults.ComfyUIURL)
	put("image_model", c.Defaults.ImageModel)
	return s
}

// Toml returns the TOML representation of the configuration.
func (c *Config) Toml() (string, error) {
	var b bytes.Buffer
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return "", fmt.Errorf("config: encode: %w", err)
	}
	return b.String(), nil
}

func checkUndecodedItems(md toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	items := make([]string, 0, len(undecoded))
	for _, item := range undecoded {
		items = append(items, item.String())
	}
	return fmt.Errorf("%w: %s", ErrUnknownItem, strings.Join(items, ","))
}
