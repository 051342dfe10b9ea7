package config

import (
	"sort"
	"strings"
)

// Settings keys as read by external collaborators
const (
	KeyClientID         = "GSN.CLIENT_ID"
	KeyClientSecret     = "GSN.CLIENT_SECRET"
	KeyServiceURLPublic = "GSN.SERVICE_URL_PUBLIC"
	KeyServiceURLLocal  = "GSN.SERVICE_URL_LOCAL"
	KeyWebUIURL         = "GSN.WEBUI_URL"
	KeyMaxQuerySize     = "GSN.MAX_QUERY_SIZE"
)

// Values returns the configuration flattened to SECTION.sub.KEY form
func (c *Config) Values() map[string]any {
	out := make(map[string]any, len(c.Databases)*2+6)
	for alias, db := range c.Databases {
		out["DATABASES."+alias+".ENGINE"] = db.Engine
		out["DATABASES."+alias+".NAME"] = db.Name
	}
	out[KeyClientID] = c.GSN.ClientID
	out[KeyClientSecret] = c.GSN.ClientSecret
	out[KeyServiceURLPublic] = c.GSN.ServiceURLPublic
	out[KeyServiceURLLocal] = c.GSN.ServiceURLLocal
	out[KeyWebUIURL] = c.GSN.WebUIURL
	out[KeyMaxQuerySize] = c.GSN.MaxQuerySize
	return out
}

// Keys returns the sorted set of configuration keys
func (c *Config) Keys() []string {
	values := c.Values()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the value stored under key. Section names are case-insensitive.
func (c *Config) Lookup(key string) (any, bool) {
	values := c.Values()
	if v, ok := values[key]; ok {
		return v, true
	}
	for k, v := range values {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// MaskSecret hides all but the edges of a secret for display
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
