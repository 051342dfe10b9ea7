package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/AI2HU/gsnweb/internal/config"
	"github.com/AI2HU/gsnweb/internal/db"
	"github.com/AI2HU/gsnweb/internal/db/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
	Long:  `Run the embedded schema migrations against the sqlite3 database of DATABASES.default.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current migration version",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

// defaultSQLite returns the store of the default database, which must use sqlite3
func defaultSQLite() (*sqlite.SQLite, error) {
	dbCfg := currentSettings().Default()
	if engine := config.NormalizeEngine(dbCfg.Engine); engine != config.EngineSQLite3 {
		return nil, fmt.Errorf("migrations only apply to %s, the default database uses %s", config.EngineSQLite3, engine)
	}

	database, err := openDatabase(dbCfg)
	if err != nil {
		return nil, err
	}
	return database.(*sqlite.SQLite), nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Fprintln(out, "🔄 Running database migrations...")

	store, err := defaultSQLite()
	if err != nil {
		return err
	}
	if err := store.Connect(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer store.Disconnect(ctx)

	fmt.Fprintln(out, FormatSuccess("✅ Migrations completed successfully!"))
	fmt.Fprintln(out, FormatLabelValue("Database:", store.Path()))
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	latest, err := db.LatestVersion()
	if err != nil {
		return err
	}

	store, err := defaultSQLite()
	if err != nil {
		return err
	}

	var version uint
	var dirty bool
	location := currentSettings().Default().Name
	switch err := store.Open(ctx); {
	case errors.Is(err, fs.ErrNotExist):
		location += " (not created yet)"
	case err != nil:
		return err
	default:
		defer store.Disconnect(ctx)
		location = store.Path()
		if version, dirty, err = db.MigrationVersion(ctx, store.DB()); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, FormatHeader("📊 Migration Status"))
	fmt.Fprintln(out, FormatLabelValue("Database:", location))
	fmt.Fprintln(out, FormatLabelValue("Version:", fmt.Sprint(version)))
	fmt.Fprintln(out, FormatLabelValue("Latest:", fmt.Sprint(latest)))
	if dirty {
		fmt.Fprintln(out, FormatWarning("⚠️  Database is dirty, a migration failed halfway"))
	} else if version < latest {
		fmt.Fprintln(out, FormatWarning(fmt.Sprintf("⚠️  %d migration(s) pending, run 'gsnweb migrate up'", latest-version)))
	}
	return nil
}
