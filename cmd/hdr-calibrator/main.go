// Package main provides the entry point for the HDR calibration daemon and tools.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shini4i/hdr-calibrator/internal/config"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	verbose    bool
	configPath string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "hdr-calibrator",
		Short: "HDR10 peak brightness calibration daemon",
		Long: `hdr-calibrator negotiates an HDR10 output mode, keeps the HDR10 static
mastering metadata in sync with a user-adjustable target peak brightness and
renders a PQ-encoded calibration pattern every frame.

The target can be adjusted from a HID keyboard (= and - keys) or over the
session bus. The remaining subcommands expose the PQ transfer function and
the metadata derivation for scripting.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(opts.verbose)

			opts.cfg = config.Default()
			if opts.configPath == "" {
				return nil
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			log.Debug().Str("path", opts.configPath).Msg("Loaded configuration")
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML configuration file")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newEncodeCmd(),
		newDecodeCmd(),
		newMetadataCmd(opts),
		newPatternCmd(opts),
		newConfigCmd(opts),
	)
	return rootCmd
}

// setupLogging configures the global logger. Interactive sessions and
// verbose runs get the console writer; otherwise logs stay JSON for journald.
func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// #nosec G115 -- file descriptors fit in int
	tty := term.IsTerminal(int(os.Stderr.Fd()))
	if verbose || tty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !tty})
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}
