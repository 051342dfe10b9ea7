package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AI2HU/gsnweb/internal/config"
	"github.com/AI2HU/gsnweb/internal/db"
	"github.com/AI2HU/gsnweb/internal/db/mongodb"
	"github.com/AI2HU/gsnweb/internal/db/sqlite"
	"github.com/AI2HU/gsnweb/internal/logger"
	"github.com/AI2HU/gsnweb/internal/models"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gsnweb",
	Short: "Backend of the GSN web UI",
	Long: `gsnweb is the backend of the GSN web UI. It holds the settings used to reach a
GSN service (client credentials, public and local service URLs, web UI URL, query size
limit), keeps browser sessions in its database and proxies sensor queries to GSN.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if level == "" {
			level = os.Getenv("GSNWEB_LOG_LEVEL")
		}
		logger.Init(logger.ParseLogLevel(level), cmd.ErrOrStderr())

		// Skip settings for the init command itself
		if cmd.Name() == "init" {
			return nil
		}

		loaded, err := loadSettings(cmd.Flags().Changed("config"), cmd.Flags().Changed("env-file"))
		if err != nil {
			return err
		}
		config.Setup(loaded)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gsnweb/config.yaml or $GSNWEB_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warning, error (default $GSNWEB_LOG_LEVEL or info)")

	// Disable completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(apiCmd)
}

// currentSettings returns the process-wide settings installed before the command ran
func currentSettings() *config.Config {
	return config.Settings()
}

// loadSettings builds the settings from defaults, the config file, the dotenv file and the environment.
// A missing file is only an error when its path was given explicitly.
func loadSettings(explicitConfig, explicitEnv bool) (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if explicitEnv || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
			}
		} else {
			logger.Debug("Loaded environment from %s", envFile)
		}
	}

	path := cfgFile
	if path == "" {
		path = config.GetConfigPath()
	}

	var loaded *config.Config
	if config.Exists(path) {
		var err error
		loaded, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		logger.Debug("Loaded configuration from %s", path)
	} else {
		if explicitConfig {
			return nil, fmt.Errorf("configuration file not found at %s. Run 'gsnweb init' to create one", path)
		}
		logger.Debug("No configuration file at %s, using defaults", path)
		loaded = config.DefaultConfig()
	}

	if err := loaded.ApplyEnv(nil); err != nil {
		return nil, err
	}
	return loaded, nil
}

// openDatabase creates the storage backend named by the database configuration
func openDatabase(dbCfg config.DatabaseConfig) (db.Database, error) {
	m := &models.DatabaseConfig{
		Engine:  config.NormalizeEngine(dbCfg.Engine),
		Name:    dbCfg.Name,
		URI:     dbCfg.Options["uri"],
		Options: dbCfg.Options,
	}

	switch m.Engine {
	case config.EngineSQLite3:
		return sqlite.New(m)
	case config.EngineMongoDB:
		return mongodb.New(m)
	default:
		return nil, fmt.Errorf("unsupported database engine: %s", dbCfg.Engine)
	}
}
