package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported database engines
const (
	EngineSQLite3 = "sqlite3"
	EngineMongoDB = "mongodb"
)

// DefaultDatabase is the alias every configuration must define
const DefaultDatabase = "default"

// ErrUnknownField is returned by Load when the file contains keys the configuration doesn't know.
var ErrUnknownField = errors.New("unknown config field")

// Config represents the application configuration
type Config struct {
	Databases map[string]DatabaseConfig `yaml:"databases"`
	GSN       GSNConfig                 `yaml:"gsn"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Engine  string            `yaml:"engine"` // sqlite3, mongodb
	Name    string            `yaml:"name"`   // file path for sqlite3, database name for mongodb
	Options map[string]string `yaml:"options,omitempty"`
}

// GSNConfig holds the credentials and endpoints of the GSN service
type GSNConfig struct {
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	ServiceURLPublic string `yaml:"service_url_public"` // used for in-browser redirects
	ServiceURLLocal  string `yaml:"service_url_local"`  // used for on-server direct calls
	WebUIURL         string `yaml:"webui_url"`          // used for in-browser redirects
	MaxQuerySize     int    `yaml:"max_query_size"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Databases: map[string]DatabaseConfig{
			DefaultDatabase: {
				Engine: EngineSQLite3,
				Name:   "db.sqlite3",
			},
		},
		GSN: GSNConfig{
			ClientID:         "gsn-webui-backend",
			ClientSecret:     "gsn-webui-backend",
			ServiceURLPublic: "http://walker.uibk.ac.at:9000/ws/",
			ServiceURLLocal:  "http://walker.uibk.ac.at:9000/ws/",
			WebUIURL:         "http://walker.uibk.ac.at:4200/",
			MaxQuerySize:     5000,
		},
	}
}

// Load loads configuration from file, on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}

// fileConfig mirrors Config as written in the YAML file. Pointers tell an explicit
// zero value apart from a missing key.
type fileConfig struct {
	Databases map[string]fileDatabaseConfig `yaml:"databases"`
	GSN       fileGSNConfig                 `yaml:"gsn"`
}

type fileDatabaseConfig struct {
	Engine  *string           `yaml:"engine"`
	Name    *string           `yaml:"name"`
	Options map[string]string `yaml:"options"`
}

type fileGSNConfig struct {
	ClientID         *string `yaml:"client_id"`
	ClientSecret     *string `yaml:"client_secret"`
	ServiceURLPublic *string `yaml:"service_url_public"`
	ServiceURLLocal  *string `yaml:"service_url_local"`
	WebUIURL         *string `yaml:"webui_url"`
	MaxQuerySize     *int    `yaml:"max_query_size"`
}

// Parse decodes YAML data on top of the defaults. Unknown keys are rejected.
// Keys present in the file win even when empty, so Validate sees them.
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file fileConfig
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return config, nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownField, err)
		}
		return nil, err
	}

	config.mergeFile(&file)
	return config, nil
}

// mergeFile overlays every key present in the file onto c
func (c *Config) mergeFile(src *fileConfig) {
	for alias, db := range src.Databases {
		current := c.Databases[alias]
		setString(&current.Engine, db.Engine)
		setString(&current.Name, db.Name)
		if db.Options != nil {
			current.Options = db.Options
		}
		c.Databases[alias] = current
	}

	g := src.GSN
	setString(&c.GSN.ClientID, g.ClientID)
	setString(&c.GSN.ClientSecret, g.ClientSecret)
	setString(&c.GSN.ServiceURLPublic, g.ServiceURLPublic)
	setString(&c.GSN.ServiceURLLocal, g.ServiceURLLocal)
	setString(&c.GSN.WebUIURL, g.WebUIURL)
	if g.MaxQuerySize != nil {
		c.GSN.MaxQuerySize = *g.MaxQuerySize
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Default returns the configuration of the default database
func (c *Config) Default() DatabaseConfig {
	return c.Databases[DefaultDatabase]
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	out := &Config{
		Databases: make(map[string]DatabaseConfig, len(c.Databases)),
		GSN:       c.GSN,
	}
	for alias, db := range c.Databases {
		if db.Options != nil {
			opts := make(map[string]string, len(db.Options))
			for k, v := range db.Options {
				opts[k] = v
			}
			db.Options = opts
		}
		out.Databases[alias] = db
	}
	return out
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// credentials live in this file
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NormalizeEngine maps engine aliases to the canonical engine name
func NormalizeEngine(engine string) string {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case EngineSQLite3, "sqlite", "django.db.backends.sqlite3":
		return EngineSQLite3
	case EngineMongoDB, "mongo":
		return EngineMongoDB
	default:
		return engine
	}
}

// GetConfigPath returns the config file path, honouring GSNWEB_CONFIG_PATH
func GetConfigPath() string {
	if p := os.Getenv("GSNWEB_CONFIG_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gsnweb/config.yaml"
	}
	return filepath.Join(home, ".gsnweb", "config.yaml")
}

// Exists checks if config file exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
