package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/krisalay/coordcache/config"
	"github.com/krisalay/coordcache/logging"
	"github.com/krisalay/coordcache/server"
)

func serveCmd() *cobra.Command {
	var (
		addr string
		warm bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the coordination HTTP API.

Examples:
  coordd serve
  coordd serve --config coordd.yaml --addr :9090
  COORD_STORE_BACKEND=redis COORD_STORE_REDIS_ADDR=redis:6379 coordd serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger, err := logging.New(os.Stderr, cfg.Log)
			if err != nil {
				return err
			}

			app, err := server.NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if warm {
				app.WarmPrices(ctx, server.DefaultPrices().Symbols())
			}
			return app.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&warm, "warm", true, "warm the price cache before serving")

	return cmd
}
