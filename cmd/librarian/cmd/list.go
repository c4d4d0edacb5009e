package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archives in the library",
	Long:  "List the keys of every archive the library holds.",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) (err error) {
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

	keys := lib.List()
	for _, key := range keys {
		fmt.Println(key)
	}
	if len(keys) == 0 {
		fmt.Println("(no archives)")
	}
	return nil
}
