package main

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/inkwell/internal/pattern"
	"github.com/zulandar/inkwell/internal/scheduler"
	"github.com/zulandar/inkwell/internal/server"
)

func newDaemonCmd() *cobra.Command {
	var (
		configPath string
		noAPI      bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the scheduler daemon",
		Long:  "Runs the periodic sweeps (due deliverables, pattern detection, quality scores) and, unless disabled, the API server. Stops cleanly on SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
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

			if !noAPI {
				go func() {
					err := server.Start(ctx, server.StartOpts{
						DB:       gormDB,
						Cfg:      cfg,
						Executor: executor,
						Sweeper:  sweeper,
						Port:     cfg.API.Port,
						Out:      cmd.OutOrStdout(),
					})
					if err != nil {
						log.Printf("iw: api server: %v", err)
					}
				}()
			}

			return sweeper.RunDaemon(ctx, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inkwell.yaml", "path to Inkwell config file")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "run sweeps without the API server")
	return cmd
}
