package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/steamtotwitter-go/internal/config"
	"github.com/eshaffer321/steamtotwitter-go/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "steamtotwitter",
		Short: "Republish Steam group announcements as tweets",
		Long: `steamtotwitter keeps a Steam session logged on, listens for group
announcements and posts each one as a status update. While Steam is
unreachable it posts an occasional downtime notice.

Settings come from an optional config file and from environment variables
named ` + config.EnvPrefix + `_<SECTION>_<KEY>, e.g. ` + config.EnvName("steam.username") + `.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML, TOML or JSON config file")

	root.AddCommand(newRunCmd(opts), newVerifyCmd(opts))
	return root
}

// setup loads configuration and builds the root logger
func setup(opts *rootOptions) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
