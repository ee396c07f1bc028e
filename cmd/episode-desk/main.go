package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	_ "time/tzdata"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "episode-desk").Logger()

	if err := newRootCommand(&logger).Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCommand(logger *zerolog.Logger) *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "episode-desk",
		Short:         "Episode metadata cache and broadcast state API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if debug {
				level = zerolog.DebugLevel
			}
			*logger = logger.Level(level)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(logger),
		newRefreshCommand(logger),
		newNextCommand(logger),
		newAnnotateCommand(logger),
	)
	return root
}
