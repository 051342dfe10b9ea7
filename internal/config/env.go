package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables that override file values
const (
	EnvDatabaseEngine   = "DATABASE_ENGINE"
	EnvDatabaseName     = "DATABASE_NAME"
	EnvClientID         = "GSN_CLIENT_ID"
	EnvClientSecret     = "GSN_CLIENT_SECRET"
	EnvServiceURLPublic = "GSN_SERVICE_URL_PUBLIC"
	EnvServiceURLLocal  = "GSN_SERVICE_URL_LOCAL"
	EnvWebUIURL         = "GSN_WEBUI_URL"
	EnvMaxQuerySize     = "GSN_MAX_QUERY_SIZE"
)

// LookupFunc resolves an environment variable, like os.LookupEnv
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables on the configuration.
// A nil lookup reads the process environment.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	db := c.Databases[DefaultDatabase]
	if v, ok := get(EnvDatabaseEngine); ok {
		db.Engine = v
	}
	if v, ok := get(EnvDatabaseName); ok {
		db.Name = v
	}
	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	c.Databases[DefaultDatabase] = db

	if v, ok := get(EnvClientID); ok {
		c.GSN.ClientID = v
	}
	if v, ok := get(EnvClientSecret); ok {
		c.GSN.ClientSecret = v
	}
	if v, ok := get(EnvServiceURLPublic); ok {
		c.GSN.ServiceURLPublic = v
	}
	if v, ok := get(EnvServiceURLLocal); ok {
		c.GSN.ServiceURLLocal = v
	}
	if v, ok := get(EnvWebUIURL); ok {
		c.GSN.WebUIURL = v
	}
	if v, ok := get(EnvMaxQuerySize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %q (%w)", EnvMaxQuerySize, v, err)
		}
		c.GSN.MaxQuerySize = n
	}

	return nil
}
