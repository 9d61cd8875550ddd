package main

import (
	"fmt"
	"io"
	"os"

	"github.com/leighmcculloch/dirsnap/internal/config"
	"github.com/leighmcculloch/dirsnap/internal/engine"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "dirsnap",
		Short: "Snapshot directory structures and compare them",
		Long:  "Track directories, capture the layout of their files and subdirectories, and compare captures to see what was added or removed.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// open is called per command so the logger sees the parsed verbose flag
	open := func() (*engine.Engine, error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		fsys := afero.NewOsFs()
		settings, err := config.Load(fsys, home)
		if err != nil {
			return nil, err
		}
		return engine.New(fsys, settings, newLogger(stderr, verbose))
	}

	rootCmd.AddCommand(
		addCmd(open, stdin, stdout, stderr),
		removeCmd(open, stdout),
		listCmd(open, stdout),
		snapshotCmd(open, stdout),
		snapshotsCmd(open, stdout),
		showCmd(open, stdout),
		compareCmd(open, stdout),
	)
	rootCmd.SetArgs(args[1:])
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// newLogger writes human readable log lines to w. Only warnings and errors
// are shown unless verbose is set.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}
	return zerolog.New(out).Level(level)
}
