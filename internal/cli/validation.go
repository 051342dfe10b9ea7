package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/AI2HU/gsnweb/internal/config"
)

// validateEngine validates database engine input
func validateEngine(input string) (string, error) {
	engine := config.NormalizeEngine(strings.TrimSpace(input))
	switch engine {
	case config.EngineSQLite3, config.EngineMongoDB:
		return engine, nil
	default:
		return "", fmt.Errorf("unsupported engine: %s (use %s or %s)", input, config.EngineSQLite3, config.EngineMongoDB)
	}
}

// validateBaseURL validates an absolute service URL
func validateBaseURL(input string) (string, error) {
	input = strings.TrimSpace(input)
	if err := config.ValidateAbsoluteURL(input); err != nil {
		return "", err
	}
	return input, nil
}

// validateNumber validates numeric input within a range
func validateNumber(input string, min, max int) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return min, nil
	}

	num, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s (enter a positive integer)", input)
	}

	if num < min || num > max {
		return 0, fmt.Errorf("number must be between %d and %d, got: %d", min, max, num)
	}

	return num, nil
}

// displaySecret masks a secret for terminal output
func displaySecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return config.MaskSecret(secret)
}

// originOf returns scheme://host of an absolute URL, or the input unchanged when it has none
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
