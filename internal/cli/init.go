package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AI2HU/gsnweb/internal/config"
)

var skipDBTest bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gsnweb configuration",
	Long:  `Interactive wizard to set up the gsnweb configuration: the default database and the GSN service settings.`,
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&skipDBTest, "skip-db-test", false, "don't test the database connection before saving")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p := newPrompter(cmd.InOrStdin(), out)

	fmt.Fprintln(out, "🚀 Welcome to gsnweb - GSN Web UI Backend Setup")
	fmt.Fprintln(out, "===============================================")
	fmt.Fprintln(out)

	configPath := cfgFile
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	if config.Exists(configPath) {
		fmt.Fprintf(out, "Configuration file already exists at: %s\n", configPath)
		confirmed, err := p.yesNo("Do you want to overwrite it? (y/N): ")
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	newCfg := config.DefaultConfig()
	defaults := newCfg.Default()

	// Database configuration
	fmt.Fprintln(out, "\n📊 Database Configuration")
	fmt.Fprintln(out, "--------------------------")

	engine, err := p.optional(fmt.Sprintf("Database engine (sqlite3/mongodb) [%s]: ", defaults.Engine), defaults.Engine, validateEngine)
	if err != nil {
		return err
	}

	dbCfg := config.DatabaseConfig{Engine: engine}
	switch engine {
	case config.EngineMongoDB:
		uri, err := p.optional("MongoDB URI [mongodb://localhost:27017]: ", "mongodb://localhost:27017", nil)
		if err != nil {
			return err
		}
		dbCfg.Options = map[string]string{"uri": uri}
		if dbCfg.Name, err = p.optional("Database name [gsnweb]: ", "gsnweb", nil); err != nil {
			return err
		}
	default:
		if dbCfg.Name, err = p.optional(fmt.Sprintf("Database file [%s]: ", defaults.Name), defaults.Name, nil); err != nil {
			return err
		}
	}
	newCfg.Databases[config.DefaultDatabase] = dbCfg

	// GSN configuration
	fmt.Fprintln(out, "\n🌐 GSN Configuration")
	fmt.Fprintln(out, "--------------------")

	gsnCfg := &newCfg.GSN
	if gsnCfg.ClientID, err = p.optional(fmt.Sprintf("OAuth2 client ID [%s]: ", gsnCfg.ClientID), gsnCfg.ClientID, nil); err != nil {
		return err
	}
	if gsnCfg.ClientSecret, err = p.optional("OAuth2 client secret [keep default]: ", gsnCfg.ClientSecret, nil); err != nil {
		return err
	}
	if gsnCfg.ServiceURLPublic, err = p.optional(fmt.Sprintf("Public service URL, used by browsers [%s]: ", gsnCfg.ServiceURLPublic), gsnCfg.ServiceURLPublic, validateBaseURL); err != nil {
		return err
	}
	if gsnCfg.ServiceURLLocal, err = p.optional(fmt.Sprintf("Local service URL, used by this server [%s]: ", gsnCfg.ServiceURLPublic), gsnCfg.ServiceURLPublic, validateBaseURL); err != nil {
		return err
	}
	if gsnCfg.WebUIURL, err = p.optional(fmt.Sprintf("Web UI URL [%s]: ", gsnCfg.WebUIURL), gsnCfg.WebUIURL, validateBaseURL); err != nil {
		return err
	}
	size, err := p.optional(fmt.Sprintf("Max query size [%d]: ", gsnCfg.MaxQuerySize), strconv.Itoa(gsnCfg.MaxQuerySize), func(input string) (string, error) {
		n, err := validateNumber(input, 1, 1_000_000)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	})
	if err != nil {
		return err
	}
	gsnCfg.MaxQuerySize, _ = strconv.Atoi(size)

	if err := newCfg.Validate(); err != nil {
		return err
	}

	if !skipDBTest {
		fmt.Fprintln(out, "\n🔌 Testing database connection...")
		if err := testConnection(cmd.Context(), dbCfg); err != nil {
			fmt.Fprintln(out, FormatError(fmt.Sprintf("❌ %v", err)))
			fmt.Fprintln(out, "\nPlease check your database configuration and try again.")
			return err
		}
		fmt.Fprintln(out, FormatSuccess("✅ Database connection successful!"))
	}

	// Save configuration
	fmt.Fprintln(out, "\n💾 Saving configuration...")
	if err := newCfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(out, "✅ Configuration saved to: %s\n", configPath)

	// Summary
	fmt.Fprintln(out, "\n📋 Configuration Summary")
	fmt.Fprintln(out, "========================")
	values := newCfg.Values()
	for _, k := range newCfg.Keys() {
		v := fmt.Sprint(values[k])
		if k == config.KeyClientSecret {
			v = displaySecret(v)
		}
		fmt.Fprintln(out, FormatLabelValue(k+":", v))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "🎉 Setup complete! You can now use gsnweb.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Check the settings: gsnweb config validate")
	fmt.Fprintln(out, "  2. Start the API: gsnweb api")

	return nil
}

func testConnection(ctx context.Context, dbCfg config.DatabaseConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}

	database, err := openDatabase(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	if err := database.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Disconnect(ctx)

	if err := database.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
