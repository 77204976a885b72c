package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-fif/pkg/fif"
)

var (
	putStreamArchive   string
	putStreamSource    string
	putStreamVolume    string
	putStreamChunkSize int64
)

var putStreamCmd = &cobra.Command{
	Use:   "put-stream [name]",
	Short: "Write a local file into an archive as an Image stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPutStream(args[0])
	},
}

func init() {
	rootCmd.AddCommand(putStreamCmd)
	putStreamCmd.Flags().StringVarP(&putStreamArchive, "archive", "a", "", "archive volume path (required)")
	putStreamCmd.Flags().StringVarP(&putStreamSource, "source", "s", "", "source file path (required)")
	putStreamCmd.Flags().StringVar(&putStreamVolume, "volume", "", "volume to resume writing into (default: most recently loaded)")
	putStreamCmd.Flags().Int64Var(&putStreamChunkSize, "chunk-size", 0, "Image stream chunk size in bytes (0 = format default)")
	putStreamCmd.MarkFlagRequired("archive")
	putStreamCmd.MarkFlagRequired("source")
}

func runPutStream(name string) error {
	archive, err := fif.Open([]string{putStreamArchive}, resolvedCacheSize())
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer archive.Close()

	volumeName := putStreamVolume
	if volumeName == "" {
		volumes := archive.VolumeNames()
		if len(volumes) == 0 {
			return fmt.Errorf("archive %q has no volumes to append to", putStreamArchive)
		}
		volumeName = volumes[len(volumes)-1]
	}
	if err := archive.AppendVolume(volumeName); err != nil {
		return fmt.Errorf("resuming volume %q: %w", volumeName, err)
	}

	src, err := os.Open(putStreamSource)
	if err != nil {
		return fmt.Errorf("opening %q: %w", putStreamSource, err)
	}
	defer src.Close()

	w := archive.CreateImageStream(name, putStreamChunkSize)
	n, err := io.Copy(w, src)
	if err != nil {
		return fmt.Errorf("writing stream %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing stream %q: %w", name, err)
	}

	fmt.Printf("wrote %d bytes as stream %q into %s\n", n, name, volumeName)
	return nil
}
