package commands

import (
	"fmt"

	"github.com/marmos91/objectloader/pkg/loader"
	"github.com/spf13/cobra"
)

var countFile string

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of objects below a root object",
	Long: `Print the number of objects a traversal will emit, read from the closure
of the root object. Only the root object is fetched.

Examples:
  # From a server
  objectloader count --server https://app.speckle.systems --stream 3073c7 --object 4a8f...

  # From a local JSON array
  objectloader count --file export.json`,
	RunE: runCount,
}

func init() {
	countCmd.Flags().StringVar(&fetchServer, "server", "", "Server URL (default: server.url from config)")
	countCmd.Flags().StringVar(&fetchStream, "stream", "", "Stream (project) id")
	countCmd.Flags().StringVar(&fetchObject, "object", "", "Root object id")
	countCmd.Flags().StringVar(&fetchToken, "token", "", "Bearer token (default: server.token from config)")
	countCmd.Flags().StringArrayVar(&fetchHeaders, "header", nil, "Extra request header as key=value (repeatable)")
	countCmd.Flags().BoolVar(&fetchNoCache, "no-cache", false, "Do not look the root up in the persistent cache")
	countCmd.Flags().StringVar(&countFile, "file", "", "Count a local JSON array instead (- for stdin)")
}

func runCount(cmd *cobra.Command, args []string) error {
	var data []byte
	if countFile != "" {
		var err error
		if data, err = readInput(cmd, countFile); err != nil {
			return err
		}
	} else if fetchStream == "" || fetchObject == "" {
		return fmt.Errorf("either --file or both --stream and --object are required")
	}

	s, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	var l *loader.Loader
	if data != nil {
		l, err = s.fileLoader(data)
	} else {
		l, err = s.serverLoader()
	}
	if err != nil {
		return err
	}
	defer s.disposeLoader(l)

	n, err := l.TotalObjectCount(s.ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}
