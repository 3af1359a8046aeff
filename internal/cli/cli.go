// Package cli defines the fpm command tree.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/fpm-dev/fpm/internal/gitgw"
	"github.com/fpm-dev/fpm/internal/logutil"
	"github.com/fpm-dev/fpm/internal/orchestrator"
)

// exitNotASource is the dedicated exit code for publish called against a
// manifest with no `root` field, kept distinct from the general
// bundle-failure code Report.ExitCode() returns.
const exitNotASource = 2

// NewCLI creates the base fpm command and its install/status/push/publish
// subcommands.
func NewCLI(version string) *cobra.Command {
	var manifestPath string
	var verbosity int

	cmd := &cobra.Command{
		Use:           "fpm",
		Short:         "A file-bundle package manager synced over plain git.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logutil.SetVerbosity(verbosity)
		},
	}

	cmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "bundle.toml", "path to the bundle manifest or its directory")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	cmd.AddCommand(
		newInstallCmd(&manifestPath),
		newStatusCmd(&manifestPath),
		newPushCmd(&manifestPath),
		newPublishCmd(&manifestPath),
		newConfigPathCmd(),
	)

	return cmd
}

// manifestDir resolves the -m flag, which may name either the manifest
// file itself (bundle.toml) or the directory containing it, to the
// directory the orchestrator operations expect.
func manifestDir(path string) string {
	if strings.HasSuffix(path, ".toml") {
		return filepath.Dir(path)
	}
	return path
}

func newInstallCmd(manifestPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install every bundle declared in the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			o := orchestrator.New(gitgw.NewClient())
			report, err := o.Install(cmd.Context(), manifestDir(*manifestPath))
			return emitAndExit(cmd, report, err)
		},
	}
}

func newStatusCmd(manifestPath *string) *cobra.Command {
	var offline bool
	c := &cobra.Command{
		Use:   "status",
		Short: "Report each bundle's sync state against its remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			o := orchestrator.New(gitgw.NewClient(), orchestrator.WithOffline(offline))
			report, err := o.Status(cmd.Context(), manifestDir(*manifestPath))
			return emitAndExit(cmd, report, err)
		},
	}
	c.Flags().BoolVar(&offline, "offline", false, "consult only each bundle's install marker, never the network")
	return c
}

func newPushCmd(manifestPath *string) *cobra.Command {
	var alias, message string
	c := &cobra.Command{
		Use:   "push",
		Short: "Push local edits in installed source bundles back upstream",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []orchestrator.Option{}
			if alias != "" {
				opts = append(opts, orchestrator.WithAlias(alias))
			}
			if message != "" {
				opts = append(opts, orchestrator.WithMessage(message))
			}
			o := orchestrator.New(gitgw.NewClient(), opts...)
			report, err := o.Push(cmd.Context(), manifestDir(*manifestPath))
			return emitAndExit(cmd, report, err)
		},
	}
	c.Flags().StringVarP(&alias, "bundle", "b", "", "restrict push to a single top-level alias")
	c.Flags().StringVar(&message, "message", "", "override the default push commit message")
	return c
}

func newPublishCmd(manifestPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Commit and push a source bundle's own working tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			o := orchestrator.New(gitgw.NewClient())
			report, err := o.Publish(cmd.Context(), manifestDir(*manifestPath))
			if err != nil {
				if errors.Is(err, orchestrator.ErrNotASource) {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					os.Exit(exitNotASource)
				}
				return err
			}
			return emitAndExit(cmd, report, nil)
		},
	}
}

// newConfigPathCmd exposes the XDG config directory fpm would use for its
// own settings, the same layered Home/ConfigDirs search adrg/xdg performs
// for any desktop-conventions-following tool.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "config-path",
		Short:  "Print the XDG config file path fpm would read settings from",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := xdg.ConfigFile("fpm/config.toml")
			if err != nil {
				return fmt.Errorf("resolving config path: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// emitAndExit prints one line per report entry plus a summary, and maps
// the outcome to the process exit code via Report.ExitCode (§6/§7): a
// non-nil operation error (manifest not found, unknown alias) is returned
// directly so cobra reports it as a command failure.
func emitAndExit(cmd *cobra.Command, report *orchestrator.Report, err error) error {
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	counts := report.Counts()
	for _, e := range report.Entries {
		fmt.Fprintln(out, e.String())
	}
	fmt.Fprintf(out, "%s: %d bundle(s)", report.Op, len(report.Entries))
	for transition, n := range counts {
		fmt.Fprintf(out, ", %d %s", n, transition)
	}
	fmt.Fprintln(out)

	if report.Failed() {
		os.Exit(report.ExitCode())
	}
	return nil
}
