package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/leighmcculloch/dirsnap/internal/engine"
	"github.com/leighmcculloch/dirsnap/internal/registry"
	"github.com/leighmcculloch/dirsnap/internal/snapshot"
	"github.com/spf13/cobra"
)

type opener func() (*engine.Engine, error)

func addCmd(open opener, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "add [dir...]",
		Short: "Track directories",
		Long:  "Track one or more existing directories. With no arguments, directories are read from stdin, one per line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}

			paths := args
			if len(paths) == 0 {
				paths, err = readLines(stdin)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
			}

			failed := 0
			for _, p := range paths {
				d, added, err := e.AddDirectory(p)
				switch {
				case err != nil:
					fmt.Fprintf(stderr, "error: %v\n", err)
					failed++
				case !added:
					fmt.Fprintf(stderr, "error: %s is already tracked (id %d)\n", d.Path, d.ID)
					failed++
				default:
					fmt.Fprintf(stdout, "added %s (id %d)\n", d.Path, d.ID)
				}
			}

			if err := e.SaveRegistry(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("failed to add %d of %d directories", failed, len(paths))
			}
			return nil
		},
	}
}

func removeCmd(open opener, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id|dir>",
		Short: "Stop tracking a directory and delete its snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			d, err := lookup(e, args[0])
			if err != nil {
				return err
			}

			_, rmErr := e.RemoveDirectory(d.ID)
			// Save even on failure so deleted snapshot files are no longer referenced
			if err := e.SaveRegistry(); err != nil {
				return err
			}
			if rmErr != nil {
				return fmt.Errorf("failed to remove %s: %w", d.Path, rmErr)
			}

			fmt.Fprintf(stdout, "removed %s\n", d.Path)
			return nil
		},
	}
}

func listCmd(open opener, stdout io.Writer) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}

			state := State{Directories: []TrackedDirectory{}}
			for _, d := range e.ListTrackedDirectories() {
				state.Directories = append(state.Directories, TrackedDirectory{
					ID:        d.ID,
					Path:      d.Path,
					Snapshots: d.SnapFiles,
				})
			}

			if asJSON {
				return writeJSON(stdout, state)
			}
			if len(state.Directories) == 0 {
				fmt.Fprintf(stdout, "no tracked directories\n")
				return nil
			}
			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ID\tPATH\tSNAPSHOTS\n")
			for _, d := range state.Directories {
				fmt.Fprintf(tw, "%d\t%s\t%d\n", d.ID, d.Path, len(d.Snapshots))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func snapshotCmd(open opener, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:     "snapshot <id|dir>",
		Aliases: []string{"snap"},
		Short:   "Capture a snapshot of a tracked directory",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			d, err := lookup(e, args[0])
			if err != nil {
				return err
			}

			name, err := e.TakeSnapshot(d.Path)
			if err != nil {
				return fmt.Errorf("failed to create snapshot of %s: %w", d.Path, err)
			}
			if err := e.SaveRegistry(); err != nil {
				return err
			}

			fmt.Fprintf(stdout, "created snapshot %s\n", name)
			return nil
		},
	}
}

func snapshotsCmd(open opener, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots <id|dir>",
		Short: "List the snapshots of a tracked directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			d, err := lookup(e, args[0])
			if err != nil {
				return err
			}

			if len(d.SnapFiles) == 0 {
				fmt.Fprintf(stdout, "no snapshots of %s\n", d.Path)
				return nil
			}
			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			for _, name := range d.SnapFiles {
				if _, taken, ok := snapshot.ParseFileName(name); ok {
					fmt.Fprintf(tw, "%s\t%s\n", name, humanize.Time(taken))
				} else {
					fmt.Fprintf(tw, "%s\t\n", name)
				}
			}
			return tw.Flush()
		},
	}
}

func showCmd(open opener, stdout io.Writer) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <snapshot>",
		Short: "Print the contents of a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			s, err := e.LoadSnapshot(args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(stdout, s)
			}
			return writeSnapshot(stdout, args[0], s)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func compareCmd(open opener, stdout io.Writer) *cobra.Command {
	var asJSON, sets bool

	cmd := &cobra.Command{
		Use:   "compare <older> <newer>",
		Short: "Compare two snapshot files",
		Long: "Compare two snapshot files and report added and removed directories and files. " +
			"Paths are compared as ordered lists, so a path that only moved position is reported as both removed and added; use --sets to compare them as sets.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}

			c := Comparison{Older: args[0], Newer: args[1], Mode: "sequence"}
			if sets {
				c.Mode = "sets"
				c.Diff, err = e.CompareSnapshotSets(args[0], args[1])
			} else {
				c.Diff, err = e.CompareSnapshots(args[0], args[1])
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(stdout, c)
			}
			return writeComparison(stdout, c)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	cmd.Flags().BoolVar(&sets, "sets", false, "compare paths as sets instead of ordered lists")
	return cmd
}

// lookup finds a tracked directory by id, or by path when arg is not a
// number.
func lookup(e *engine.Engine, arg string) (registry.Directory, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		d, ok := e.Directory(id)
		if !ok {
			return registry.Directory{}, fmt.Errorf("no tracked directory with id %d", id)
		}
		return d, nil
	}

	d, ok, err := e.DirectoryByPath(arg)
	if err != nil {
		return registry.Directory{}, err
	}
	if !ok {
		return registry.Directory{}, fmt.Errorf("%w: %s", engine.ErrNotTracked, arg)
	}
	return d, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
