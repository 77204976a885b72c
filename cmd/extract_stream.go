package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-fif/pkg/fif"
)

var (
	extractStreamArchive string
	extractStreamDest    string
)

var extractStreamCmd = &cobra.Command{
	Use:   "extract-stream [name]",
	Short: "Read a stream out of an archive to a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtractStream(args[0])
	},
}

func init() {
	rootCmd.AddCommand(extractStreamCmd)
	extractStreamCmd.Flags().StringVarP(&extractStreamArchive, "archive", "a", "", "archive volume path (required)")
	extractStreamCmd.Flags().StringVarP(&extractStreamDest, "dest", "d", "", "destination file path (required)")
	extractStreamCmd.MarkFlagRequired("archive")
	extractStreamCmd.MarkFlagRequired("dest")
}

func runExtractStream(name string) error {
	archive, err := fif.Open([]string{extractStreamArchive}, resolvedCacheSize())
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer archive.Close()

	src, err := archive.OpenAnyStream(name)
	if err != nil {
		return fmt.Errorf("opening stream %q: %w", name, err)
	}

	out, err := os.Create(extractStreamDest)
	if err != nil {
		return fmt.Errorf("creating %q: %w", extractStreamDest, err)
	}
	defer out.Close()

	n, err := io.Copy(out, src)
	if err != nil {
		return fmt.Errorf("extracting stream %q: %w", name, err)
	}
	fmt.Printf("wrote %d bytes to %s\n", n, extractStreamDest)
	return nil
}
