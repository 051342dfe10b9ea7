package models

// Database configuration handed to the storage backends

// DatabaseConfig holds the resolved settings of one database
type DatabaseConfig struct {
	Engine  string            // sqlite3, mongodb
	Name    string            // File path (sqlite3) or database name (mongodb)
	URI     string            // Connection URI, mongodb only
	Options map[string]string // Engine-specific options
}
