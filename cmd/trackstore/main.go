// Command trackstore is a demo driver over a trackstore.Store: it exposes
// put/get/rm/stat subcommands so a blob directory can be exercised from a
// shell, the way an external service would use the library.
package main

import (
	"fmt"
	"os"

	"github.com/absfs/osfs"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/blobtrack/trackstore"
)

var (
	dir       string
	trackSize uint64
	chunkSize uint64
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trackstore",
		Short: "Inspect and exercise a trackstore blob directory",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "d", "", "store directory (required)")
	rootCmd.MarkPersistentFlagRequired("dir")
	rootCmd.PersistentFlags().Uint64Var(&trackSize, "track-size", 64<<20+24, "track file capacity in bytes")
	rootCmd.PersistentFlags().Uint64Var(&chunkSize, "chunk-size", trackstore.DefaultChunkSize, "chunk frame size in bytes")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newPutCmd(), newGetCmd(), newRmCmd(), newStatCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func openStore() (*trackstore.Store, error) {
	fs, err := osfs.NewFS()
	if err != nil {
		return nil, fmt.Errorf("open base filesystem: %w", err)
	}
	return trackstore.Open(fs, trackstore.Config{
		Dir:       dir,
		TrackSize: trackSize,
		ChunkSize: chunkSize,
	})
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put KEY",
		Short: "Write stdin to KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			key := []byte(args[0])
			if err := store.Write(key, os.Stdin); err != nil {
				return fmt.Errorf("put %q: %w", args[0], err)
			}
			log.Info("wrote blob", "key", args[0])
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Write KEY's bytes to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			key := []byte(args[0])
			if err := store.Read(key, os.Stdout); err != nil {
				return fmt.Errorf("get %q: %w", args[0], err)
			}
			return nil
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm KEY",
		Short: "Delete KEY and reclaim its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			key := []byte(args[0])
			if err := store.Delete(key); err != nil {
				return fmt.Errorf("rm %q: %w", args[0], err)
			}
			log.Info("deleted blob", "key", args[0])
			return nil
		},
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat KEY",
		Short: "Report whether KEY exists and how many chunks it occupies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, ok, err := store.Stat([]byte(args[0]))
			if err != nil {
				return fmt.Errorf("stat %q: %w", args[0], err)
			}
			if !ok {
				log.Info("no such key", "key", args[0])
				return nil
			}
			log.Info("blob stat", "key", args[0], "chunks", n)
			return nil
		},
	}
}
