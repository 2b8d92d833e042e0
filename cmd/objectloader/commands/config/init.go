package config

import (
	"fmt"

	"github.com/marmos91/objectloader/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Write a configuration file holding every default value.

By default, the configuration file is created at $XDG_CONFIG_HOME/objectloader/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  objectloader config init

  # Initialize with custom path
  objectloader config init --config ./objectloader.yaml

  # Force overwrite existing config
  objectloader config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Set server.url and pick a cache backend")
	_, _ = fmt.Fprintln(out, "  2. Export the token instead of writing it to the file:")
	_, _ = fmt.Fprintln(out, "       export OBJECTLOADER_SERVER_TOKEN=<token>")
	_, _ = fmt.Fprintln(out, "  3. Fetch a graph: objectloader fetch --stream <id> --object <id>")
	return nil
}
