package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/imkarma/taskledger/internal/store"
)

const (
	// Dir is the project-local directory holding config and database.
	Dir = ".taskledger"
	// FileName is the config file inside Dir.
	FileName = "config.yaml"
	// DBName is the default SQLite file inside Dir.
	DBName = "ledger.db"
	// EnvPrefix prefixes environment overrides, e.g. TASKLEDGER_STORE_DSN.
	EnvPrefix = "TASKLEDGER"
)

// Config is the root configuration for a ledger project.
type Config struct {
	Version int         `yaml:"version" mapstructure:"version"`
	Store   StoreConfig `yaml:"store" mapstructure:"store"`
	Inbox   InboxConfig `yaml:"inbox" mapstructure:"inbox"`
	Log     LogConfig   `yaml:"log" mapstructure:"log"`
	Agents  []Agent     `yaml:"agents" mapstructure:"agents"`
}

// StoreConfig selects the database.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn,omitempty" mapstructure:"dsn"`
}

// InboxConfig bounds message queries.
type InboxConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit"`
}

// LogConfig controls the stderr logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// Agent is one member of the team roster.
type Agent struct {
	Name string `yaml:"name" mapstructure:"name"`
	Role string `yaml:"role" mapstructure:"role"`
}

// DefaultAgents is the five-agent team the built-in plan is written for.
func DefaultAgents() []Agent {
	return []Agent{
		{Name: "PM-Agent", Role: "project manager"},
		{Name: "Architect-Agent", Role: "architect"},
		{Name: "Backend-Agent", Role: "backend developer"},
		{Name: "Frontend-Agent", Role: "frontend developer"},
		{Name: "DevOps-Agent", Role: "devops engineer"},
	}
}

// DefaultConfig returns a starter config.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Store:   StoreConfig{Driver: string(store.DriverSQLite)},
		Inbox:   InboxConfig{Limit: store.DefaultInboxLimit},
		Log:     LogConfig{Level: "info", Format: "text"},
		Agents:  DefaultAgents(),
	}
}

// Path returns the config file location under root.
func Path(root string) string {
	return filepath.Join(root, Dir, FileName)
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", "")
	v.SetDefault("inbox.limit", d.Inbox.Limit)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the config file at path, or looks for .taskledger/config.yaml
// in the working directory when path is empty. A missing default file is
// not an error. TASKLEDGER_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(Dir)
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = DefaultAgents()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) validate() error {
	if _, err := store.ParseDriver(c.Store.Driver); err != nil {
		return fmt.Errorf("store.driver: %w", err)
	}
	if c.Inbox.Limit <= 0 {
		return fmt.Errorf("inbox.limit must be positive, got %d", c.Inbox.Limit)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	seen := map[string]bool{}
	for i, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent %d: name is required", i+1)
		}
		if seen[a.Name] {
			return fmt.Errorf("agent %q: listed twice", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// StoreConfig resolves the database settings. An SQLite store without a
// DSN lives in .taskledger/ledger.db under root.
func (c *Config) StoreConfig(root string) (store.Config, error) {
	d, err := store.ParseDriver(c.Store.Driver)
	if err != nil {
		return store.Config{}, err
	}
	dsn := c.Store.DSN
	if dsn == "" && d == store.DriverSQLite {
		dsn = filepath.Join(root, Dir, DBName)
	}
	return store.Config{Driver: d, DSN: dsn}, nil
}

// AgentNames returns the roster names in config order.
func (c *Config) AgentNames() []string {
	names := make([]string, 0, len(c.Agents))
	for _, a := range c.Agents {
		names = append(names, a.Name)
	}
	return names
}

// Roles maps agent names to roles.
func (c *Config) Roles() map[string]string {
	roles := make(map[string]string, len(c.Agents))
	for _, a := range c.Agents {
		roles[a.Name] = a.Role
	}
	return roles
}
