package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <link>",
	Short: "Look up an archive in the library",
	Long:  "Resolve a link and print the key and directory of the archive, if the library holds it.",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) (err error) {
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

	fmt.Printf("%s\t%s\n", archive.Key(), archive.Path())
	return nil
}
