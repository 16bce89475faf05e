package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/inkwell/internal/pattern"
	"github.com/zulandar/inkwell/internal/scheduler"
	"github.com/zulandar/inkwell/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server without the sweep loops",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.API.Port = port
			}

			executor := buildExecutor(cfg, gormDB)
			sweeper := &scheduler.Sweeper{
				DB:       gormDB,
				Cfg:      cfg,
				Executor: executor,
				Detector: &pattern.Detector{DB: gormDB, Notifier: executor.Notifier},
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.Start(ctx, server.StartOpts{
				DB:       gormDB,
				Cfg:      cfg,
				Executor: executor,
				Sweeper:  sweeper,
				Port:     cfg.API.Port,
				Out:      cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override api.port from config")
	return cmd
}
