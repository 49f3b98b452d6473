package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the publishing credentials and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			client, err := newTwitterClient(cfg, logger.Named("Twitter"), nil)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			account, err := client.VerifyCredentials(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authenticated as @%s (%s)\n", account.ScreenName, account.Name)
			return nil
		},
	}
}
