package main

import (
	"context"
	"net/http"
	"time"

	"github.com/eshaffer321/steamtotwitter-go/internal/auth"
	"github.com/eshaffer321/steamtotwitter-go/internal/config"
	"github.com/eshaffer321/steamtotwitter-go/internal/logging"
	"github.com/eshaffer321/steamtotwitter-go/internal/metrics"
	"github.com/eshaffer321/steamtotwitter-go/internal/router"
	"github.com/eshaffer321/steamtotwitter-go/internal/session"
	"github.com/eshaffer321/steamtotwitter-go/internal/status"
	"github.com/eshaffer321/steamtotwitter-go/internal/trust"
	"github.com/eshaffer321/steamtotwitter-go/internal/types"
	"github.com/eshaffer321/steamtotwitter-go/internal/upstream"
	"github.com/eshaffer321/steamtotwitter-go/pkg/twitter"
	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd, opts)
		},
	}
}

func runBot(cmd *cobra.Command, opts *rootOptions) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return run(ctx, cfg, logger)
}

func newTwitterClient(cfg *config.Config, logger types.Logger, hooks *types.Hooks) (*twitter.Client, error) {
	opts := &twitter.ClientOptions{
		BaseURL:          cfg.Twitter.BaseURL,
		Timeout:          cfg.Twitter.Timeout,
		Credentials:      cfg.Credentials(),
		MaxMessageLength: cfg.Twitter.MaxMessageLength,
		Logger:           logger,
		Hooks:            hooks,
	}
	if cfg.Sentry.DSN != "" {
		opts.SentryDSN = cfg.Sentry.DSN
		opts.SentryOptions = &sentry.ClientOptions{Environment: cfg.Sentry.Environment}
	}
	return twitter.NewClient(opts)
}

// challengeSources answers verification from configuration first, then
// from an operator on the terminal
func challengeSources(cfg *config.Config) (auth.Chain, error) {
	chain := auth.Chain{
		auth.Static{Kind: auth.KindEmailCode, Value: cfg.Steam.AuthCode},
	}
	if cfg.Steam.SharedSecret != "" {
		secret, err := auth.NewSharedSecret(cfg.Steam.SharedSecret)
		if err != nil {
			return nil, errors.Wrap(err, "steam.shared_secret")
		}
		chain = append(chain, secret)
	}
	return append(chain, auth.NewTerminalPrompt()), nil
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	m := metrics.New()

	client, err := newTwitterClient(cfg, logger.Named("Twitter"), m.HTTPHooks())
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.Twitter.VerifyOnStart {
		account, err := client.VerifyCredentials(ctx)
		if err != nil {
			return err
		}
		logger.Named("Twitter").Info("Authenticated", "screen_name", account.ScreenName)
	}

	challenges, err := challengeSources(cfg)
	if err != nil {
		return err
	}

	gateway := upstream.NewWebSocketTransport(&upstream.Options{
		URL:    cfg.Steam.GatewayURL,
		Logger: logger.Named("Gateway"),
	})

	rt := router.New(router.Options{
		Publisher: client,
		Names:     gateway,
		Brand:     cfg.Steam.Brand,
		Logger:    logger.Named("Router"),
		OnPublish: m.ObservePublish,
	})

	hooks := m.SessionHooks(session.Hooks{})

	var mirror *status.Mirror
	if cfg.MQTT.Broker != "" {
		pub, err := status.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		if err != nil {
			return errors.Wrap(err, "mqtt")
		}
		defer pub.Close()
		mirror = status.NewMirror(pub, logger.Named("Status"))
		hooks = mirror.Hooks(hooks)
	}

	trustStore := trust.NewFileStore(cfg.Steam.SentryFile, logger.Named("Trust"))
	logger.Named("Trust").Info("Using trust file", "path", trustStore.Path())

	var notices twitter.Publisher
	if cfg.Downtime.Enabled {
		notices = client
	}

	ctrl, err := session.New(session.Options{
		Transport:               gateway,
		Router:                  rt,
		Publisher:               notices,
		Trust:                   trustStore,
		Challenges:              challenges,
		Username:                cfg.Steam.Username,
		Password:                cfg.Steam.Password,
		LoginFailurePolicy:      session.FailurePolicy(cfg.Session.LoginFailurePolicy),
		ReconnectDelay:          cfg.Session.ReconnectDelay,
		LoginRetryDelay:         cfg.Session.LoginRetryDelay,
		ForcedReconnectInterval: cfg.Session.ForcedReconnectInterval,
		DowntimeCheckInterval:   cfg.Downtime.CheckInterval,
		DowntimeCooldown:        cfg.Downtime.Cooldown,
		Logger:                  logger.Named("Steam"),
		Hooks:                   hooks,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	if mirror != nil {
		g.Go(func() error {
			return mirror.Run(gctx)
		})
	}

	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("Serving metrics", "addr", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if err != nil {
		logger.Error("Stopped", "error", err)
		return err
	}
	logger.Info("Stopped")
	return nil
}
