package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"secret-evoting/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the voting workflow over HTTP",
	RunE: func(c *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(c.Context())
		defer cancel()

		svc, err := startService(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Stop(); err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
			}
		}()

		server := api.NewServer(svc, api.Options{
			Gatherer:  svc.Metrics().Registry(),
			Metrics:   svc.Metrics(),
			RateLimit: api.NewRateLimiter(cfg.API.ReadRPS, cfg.API.WriteRPS, cfg.API.RateBurst),
		}, logger.Named("api"))

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
		defer signal.Stop(sigChan)

		go func() {
			for {
				select {
				case sig := <-sigChan:
					if sig == syscall.SIGHUP {
						logger.Info("Received SIGHUP, reloading keystore")
						if err := svc.Reconnect(); err != nil {
							logger.Error("Keystore reload failed", zap.Error(err))
						}
						continue
					}
					logger.Info("Received signal", zap.String("signal", sig.String()))
					cancel()
					return
				case <-ctx.Done():
					return
				}
			}
		}()

		if err := server.Run(ctx, cfg.API.Addr); err != nil {
			return err
		}
		logger.Info("Server shutdown completed")
		return nil
	},
}
