package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZachT1711/gittry/internal/errors"
	"github.com/ZachT1711/gittry/internal/logging"
	"github.com/ZachT1711/gittry/internal/pattern"
	"github.com/ZachT1711/gittry/internal/repo"
	"github.com/ZachT1711/gittry/internal/sparse"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "gittry",
	Short: "gittry is a content-addressed version control system",
	Long: `gittry is a content-addressed version control system with
sparse-checkout support: the working tree can be restricted to the subset
of tracked files matching a set of path patterns.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func newLogger() *zap.Logger {
	l, err := logging.NewLogger(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid log level:", logLevel)
		os.Exit(1)
	}
	return l.Logger
}

func openRepo() (*repo.Repository, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	return repo.Open(dir, newLogger())
}

func warnf(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			r, err := repo.Init(dir, newLogger())
			if err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}
			defer r.Close()

			fmt.Println("Initialized empty repository in", dir)
			return nil
		},
	}

	var snapshotMsg string
	var snapshotAuthor string
	var snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Record the working tree as a new commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			oid, err := r.Snapshot(snapshotMsg, snapshotAuthor)
			if err != nil {
				return fmt.Errorf("recording snapshot: %w", err)
			}

			color.New(color.FgGreen).Println("Recorded snapshot", oid)
			return nil
		},
	}
	snapshotCmd.Flags().StringVarP(&snapshotMsg, "message", "m", "", "snapshot message")
	snapshotCmd.Flags().StringVar(&snapshotAuthor, "author", "", "snapshot author")

	var sparseCmd = &cobra.Command{
		Use:   "sparse-checkout",
		Short: "Restrict the working tree to a subset of tracked files",
	}

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "Print the current sparse-checkout patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			ctl := sparse.NewController(r)
			pl, err := ctl.ReadPatterns()
			if err != nil {
				if os.IsNotExist(err) {
					warnf("this worktree is not sparse (sparse-checkout file may not exist)")
					return nil
				}
				return err
			}
			for _, w := range pl.Warnings() {
				warnf("%s", w)
			}
			return pl.WriteGeneralTo(os.Stdout)
		},
	}

	var initCone bool
	var sparseInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Enable sparse-checkout",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			return sparse.NewController(r).Init(initCone)
		},
	}
	sparseInitCmd.Flags().BoolVar(&initCone, "cone", false, "initialize the sparse-checkout in cone mode")

	var setCone bool
	var setStdin bool
	var setCmd = &cobra.Command{
		Use:   "set [<patterns>...]",
		Short: "Replace the sparse-checkout patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			ctl := sparse.NewController(r)

			useCone := setCone
			if !cmd.Flags().Changed("cone") {
				useCone = ctl.Mode() == sparse.ConePatterns
			}

			inputs := args
			if setStdin {
				inputs = nil
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					inputs = append(inputs, scanner.Text())
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("reading patterns from stdin: %w", err)
				}
			}

			pl := pattern.NewList(useCone)
			for _, in := range inputs {
				if err := pattern.Validate(in); err != nil {
					return err
				}
				if useCone {
					pl.ConeInsert(in)
				} else {
					if err := pl.Add(in, ""); err != nil {
						return err
					}
				}
			}

			return ctl.Set(pl)
		},
	}
	setCmd.Flags().BoolVar(&setCone, "cone", false, "interpret patterns as directory cones")
	setCmd.Flags().BoolVar(&setStdin, "stdin", false, "read patterns from standard in")

	var disableCmd = &cobra.Command{
		Use:   "disable",
		Short: "Restore the full working tree and turn sparse-checkout off",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			return sparse.NewController(r).Disable()
		},
	}

	sparseCmd.AddCommand(listCmd, sparseInitCmd, setCmd, disableCmd)
	rootCmd.AddCommand(initCmd, snapshotCmd, sparseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(errors.ExitCode(err))
	}
}
