package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// FieldError describes one invalid configuration key
type FieldError struct {
	Key     string
	Message string
}

// ValidationError collects every invalid key of a configuration
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Key, fe.Message)
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(key, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Key: key, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the configuration invariants and reports all violations at once
func (c *Config) Validate() error {
	verr := &ValidationError{}

	if _, ok := c.Databases[DefaultDatabase]; !ok {
		verr.add("DATABASES."+DefaultDatabase, "is required")
	}

	aliases := make([]string, 0, len(c.Databases))
	for alias := range c.Databases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	for _, alias := range aliases {
		db := c.Databases[alias]
		prefix := "DATABASES." + alias
		switch NormalizeEngine(db.Engine) {
		case EngineSQLite3, EngineMongoDB:
		case "":
			verr.add(prefix+".ENGINE", "is required")
		default:
			verr.add(prefix+".ENGINE", "unsupported engine %q (supported: %s, %s)", db.Engine, EngineSQLite3, EngineMongoDB)
		}
		if strings.TrimSpace(db.Name) == "" {
			verr.add(prefix+".NAME", "is required")
		}
	}

	if strings.TrimSpace(c.GSN.ClientID) == "" {
		verr.add(KeyClientID, "must not be empty")
	}
	if strings.TrimSpace(c.GSN.ClientSecret) == "" {
		verr.add(KeyClientSecret, "must not be empty")
	}

	urls := []struct {
		key   string
		value string
	}{
		{KeyServiceURLPublic, c.GSN.ServiceURLPublic},
		{KeyServiceURLLocal, c.GSN.ServiceURLLocal},
		{KeyWebUIURL, c.GSN.WebUIURL},
	}
	for _, u := range urls {
		if err := ValidateAbsoluteURL(u.value); err != nil {
			verr.add(u.key, "%v", err)
		}
	}

	if c.GSN.MaxQuerySize <= 0 {
		verr.add(KeyMaxQuerySize, "must be a positive integer, got %d", c.GSN.MaxQuerySize)
	}

	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

// ValidateAbsoluteURL checks that raw is an absolute http(s) URL with a host
func ValidateAbsoluteURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL %q: %v", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("must be an absolute URL, got %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	return nil
}
