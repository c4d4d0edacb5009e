package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hashbeam/librarian/mirror"
)

var statusCmd = &cobra.Command{
	Use:   "status <link>",
	Short: "Show replication state of an archive",
	Long:  "Print the key, directory, file count, snapshot root and last sync time of an archive.",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) (err error) {
	lib, err := newLibrarian()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := lib.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := lib.Load(context.Background()); err != nil {
		return err
	}

	archive, err := lib.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	manifest, err := mirror.ReadManifest(archive.Path())
	if err != nil {
		return err
	}

	fmt.Printf("key:       %s\n", manifest.Key)
	fmt.Printf("directory: %s\n", archive.Path())
	fmt.Printf("files:     %d\n", len(manifest.Files))
	if manifest.Root != "" {
		fmt.Printf("snapshot:  %s\n", manifest.Root)
	} else {
		fmt.Printf("snapshot:  (empty)\n")
	}
	if !manifest.SyncedAt.IsZero() {
		fmt.Printf("synced:    %s\n", manifest.SyncedAt.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Printf("synced:    never\n")
	}
	return nil
}
