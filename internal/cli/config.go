package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AI2HU/gsnweb/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the active settings",
	Long: `Inspect the settings after defaults, config file, dotenv file and environment
overrides have been applied.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every setting",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the settings and report every invalid key",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the setting keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range currentSettings().Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print one setting, e.g. GSN.MAX_QUERY_SIZE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, ok := currentSettings().Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown setting: %s", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.GetConfigPath()
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	settings := currentSettings()
	values := settings.Values()

	fmt.Fprintln(out, FormatHeader("📋 Settings"))
	fmt.Fprintln(out, FormatHeader("==========="))
	for _, k := range settings.Keys() {
		v := fmt.Sprint(values[k])
		if k == config.KeyClientSecret {
			v = displaySecret(v)
		}
		fmt.Fprintln(out, FormatLabelValue(k+":", v))
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	err := currentSettings().Validate()
	if err == nil {
		fmt.Fprintln(out, FormatSuccess("✅ Configuration is valid"))
		return nil
	}

	var verr *config.ValidationError
	if errors.As(err, &verr) {
		for _, fe := range verr.Errors {
			fmt.Fprintf(out, "%s %s\n", FormatError("❌ "+fe.Key+":"), fe.Message)
		}
	}
	return err
}
