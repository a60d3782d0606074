package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"secret-evoting/config"
	"secret-evoting/logging"
	"secret-evoting/service"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "evote",
	Short:         "Secret Network e-voting client",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Environment()
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		if err := applyFlags(c, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			File:   cfg.Log.File,
		})
		if err != nil {
			return errors.Wrap(err, "build logger")
		}
		logger.Debug("Configuration loaded", zap.Any("config", config.SafeConfig(*cfg)))
		return nil
	},
	PersistentPostRun: func(c *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("chain-id", "", "chain id (overrides EVOTE_CHAIN_ID)")
	flags.String("lcd", "", "LCD endpoint (overrides EVOTE_CHAIN_LCD_URL)")
	flags.String("storage", "", "receipt store driver: file, memory, badger, sqlite or redis")
	flags.String("log-level", "", "log level (overrides EVOTE_LOG_LEVEL)")
	flags.Uint32("account", 0, "wallet account index")
	flags.Duration("timeout", 2*time.Minute, "how long one-shot commands wait for the chain")

	rootCmd.AddCommand(serveCmd, searchCmd, voteCmd, createCmd, infoCmd, keysCmd)
}

func applyFlags(c *cobra.Command, cfg *config.Config) error {
	flags := c.Flags()
	if v, _ := flags.GetString("chain-id"); v != "" {
		cfg.Chain.ID = v
	}
	if v, _ := flags.GetString("lcd"); v != "" {
		cfg.Chain.LCDURL = v
	}
	if v, _ := flags.GetString("storage"); v != "" {
		cfg.Storage.Driver = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if flags.Changed("account") {
		v, err := flags.GetUint32("account")
		if err != nil {
			return err
		}
		cfg.Wallet.AccountIndex = v
	}
	return nil
}

// startService builds the service, connects the wallet and waits until the
// connection attempt has finished.
func startService(ctx context.Context) (*service.EVotingService, error) {
	svc, err := service.NewEVotingService(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := svc.Start(ctx); err != nil {
		_ = svc.Stop()
		return nil, errors.Wrap(err, "start service")
	}
	if _, err := svc.WaitForWallet(ctx); err != nil {
		_ = svc.Stop()
		return nil, errors.Wrap(err, "wait for wallet")
	}
	return svc, nil
}

func commandContext(c *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := c.Flags().GetDuration("timeout")
	return context.WithTimeout(c.Context(), timeout)
}
