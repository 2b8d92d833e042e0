package config

import (
	"fmt"
	"io"

	"github.com/marmos91/objectloader/internal/cli/output"
	"github.com/marmos91/objectloader/pkg/config"
	"github.com/spf13/cobra"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective objectloader configuration, defaults included.

The server token is masked. The file the values come from is printed on
stderr.

Examples:
  # Show default config as YAML
  objectloader config show

  # Show as JSON
  objectloader config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}
	if cfg.Server.Token != "" {
		cfg.Server.Token = "********"
	}
	printSource(cmd.ErrOrStderr(), configPath)

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}

// printSource names the file the configuration was read from.
func printSource(w io.Writer, configPath string) {
	switch {
	case configPath != "":
		_, _ = fmt.Fprintf(w, "# Source: %s\n", configPath)
	case config.DefaultConfigExists():
		_, _ = fmt.Fprintf(w, "# Source: %s\n", config.GetDefaultConfigPath())
	default:
		_, _ = fmt.Fprintf(w, "# No configuration file in %s, showing defaults\n", config.GetConfigDir())
	}
}
