package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	nativeload "github.com/amikos-tech/pure-nativeload"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "nativeload",
		Short:         "Extract and load bundled native libraries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log loader decisions")

	rootCmd.AddCommand(infoCmd(), ensureCmd(), extractCmd())

	err := rootCmd.Execute()
	_ = zap.L().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogger(verbose bool) error {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "cannot build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show platform and bundled library information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(nativeload.GetLoaderInfo())
		},
	}
}

func ensureCmd() *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Load libstdc++ for this platform unless the system provides it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := nativeload.Load()
			if !keep {
				defer func() {
					_ = nativeload.Shutdown()
				}()
			}
			if !res.Ok() {
				return res.Err
			}
			if res.Path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Outcome, res.Path)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), res.Outcome)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "Leave extracted files in place on exit")
	return cmd
}

func extractCmd() *cobra.Command {
	var scratchDir string
	var keep bool

	cmd := &cobra.Command{
		Use:   "extract <resource-path>",
		Short: "Extract a bundled library (e.g. /lib/linux64/libstdc++_6.0.22.so) and load it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []nativeload.ExtractorOption
			if scratchDir != "" {
				opts = append(opts, nativeload.WithScratchRoot(scratchDir))
			}
			ex, err := nativeload.NewExtractor(nativeload.Bundled(), opts...)
			if err != nil {
				return err
			}
			if !keep {
				defer func() {
					_ = ex.Close()
				}()
			}
			lib, err := ex.ExtractAndLoad(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), lib.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&scratchDir, "scratch-dir", "", "Directory to create the scratch directory in")
	cmd.Flags().BoolVar(&keep, "keep", false, "Leave extracted files in place on exit")
	return cmd
}
