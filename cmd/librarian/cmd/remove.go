package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <link>",
	Short: "Remove an archive from the library",
	Long:  "Stop replicating an archive and delete its directory from the library.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) (err error) {
	link := args[0]

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

	if err := lib.Remove(context.Background(), link); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Removed %s\n", link)
	return nil
}
