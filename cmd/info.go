package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-fif/pkg/fif"
)

var infoCmd = &cobra.Command{
	Use:   "info [path ...]",
	Short: "Print an archive's UUID, volumes, and member index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(args)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(paths []string) error {
	archive, err := fif.Open(paths, resolvedCacheSize())
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer archive.Close()

	fmt.Printf("uuid: %s\n", archive.UUID())

	volumes := archive.VolumeNames()
	fmt.Printf("volumes (%d):\n", len(volumes))
	for _, v := range volumes {
		fmt.Printf("    %s\n", v)
	}

	members := archive.Members()
	sort.Strings(members)
	fmt.Printf("members (%d):\n", len(members))
	for _, m := range members {
		fmt.Printf("    %s\n", m)
	}
	return nil
}
