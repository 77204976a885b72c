package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-fif/pkg/fif"
)

var createVolumeCmd = &cobra.Command{
	Use:   "create-volume [path]",
	Short: "Start a new archive with one empty volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreateVolume(args[0])
	},
}

func init() {
	rootCmd.AddCommand(createVolumeCmd)
}

func runCreateVolume(path string) error {
	archive, err := fif.Create(path, resolvedCacheSize())
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	defer archive.Close()

	fmt.Printf("created archive %s\n", path)
	fmt.Printf("    uuid: %s\n", archive.UUID())
	return nil
}
