package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hashbeam/librarian"
)

var (
	addWait    bool
	addTimeout time.Duration
)

var addCmd = &cobra.Command{
	Use:   "add <link>",
	Short: "Add an archive to the library",
	Long:  "Resolve a link to an archive key, add the archive to the library, and start replicating it.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().BoolVar(&addWait, "wait", false, "block until the archive has joined the network")
	addCmd.Flags().DurationVar(&addTimeout, "timeout", 0, "give up on --wait after this long (0 waits forever)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) (err error) {
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

	joined := make(chan struct{}, 1)
	if addWait {
		stop := lib.OnJoined(func(a librarian.Archive) {
			select {
			case joined <- struct{}{}:
			default:
			}
		})
		defer stop()
	}

	archive, err := lib.Add(context.Background(), link)
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}

	fmt.Printf("%s\t%s\n", archive.Key(), archive.Path())

	if addWait {
		fmt.Fprintln(os.Stderr, "Waiting for network join...")
		if addTimeout > 0 {
			select {
			case <-joined:
			case <-time.After(addTimeout):
				return fmt.Errorf("timed out waiting for network join after %s", addTimeout)
			}
		} else {
			<-joined
		}
		fmt.Fprintln(os.Stderr, "Joined.")
	} else {
		fmt.Fprintln(os.Stderr, "Joining network in background; use --wait to block until joined.")
	}
	return nil
}
