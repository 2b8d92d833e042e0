package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/marmos91/objectloader/internal/cli/output"
	"github.com/marmos91/objectloader/pkg/loader"
	"github.com/spf13/cobra"
)

var loadOutput string

var loadCmd = &cobra.Command{
	Use:   "load <file.json|->",
	Short: "Stream the object graph of a local JSON array",
	Long: `Stream every object of a JSON array of objects, starting from its first
element. Nothing is downloaded: references to objects that are not in the
array fail the load.

Examples:
  # Summarize an exported graph
  objectloader load export.json

  # Re-emit with chunks merged, reading stdin
  cat export.json | objectloader load - --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVarP(&loadOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runLoad(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(loadOutput)
	if err != nil {
		return err
	}

	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	s, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	l, err := s.fileLoader(data)
	if err != nil {
		return err
	}
	defer s.disposeLoader(l)

	sink, err := newObjectSink(cmd.OutOrStdout(), format)
	if err != nil {
		return err
	}
	return s.stream(l, sink)
}

func (s *session) fileLoader(data []byte) (*loader.Loader, error) {
	opts, err := s.loaderOptions(false)
	if err != nil {
		return nil, err
	}
	l, err := loader.NewFromJSON(string(data), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse objects: %w", err)
	}
	return l, nil
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
