package config

import (
	"fmt"
	"strconv"

	"github.com/marmos91/objectloader/internal/cli/output"
	"github.com/marmos91/objectloader/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the objectloader configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  objectloader config validate

  # Validate specific config file
  objectloader config validate --config ./objectloader.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Server.URL == "" {
		warnings = append(warnings, "server.url not configured - fetch needs --server")
	}
	if cfg.Server.Token != "" {
		warnings = append(warnings, "server.token is stored in the file - prefer OBJECTLOADER_SERVER_TOKEN")
	}
	if cfg.Cache.Type == "memory" {
		warnings = append(warnings, "cache.type is memory - nothing is kept between runs")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	return output.SimpleTable(out, [][2]string{
		{"Server", cfg.Server.URL},
		{"Cache type", cfg.Cache.Type},
		{"Use worker", strconv.FormatBool(cfg.Loader.UseWorker)},
		{"Log level", cfg.Logging.Level},
	})
}
