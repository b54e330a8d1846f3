package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quadmill/quadmill/quads/engine"
	"github.com/quadmill/quadmill/quads/persist"
	"github.com/quadmill/quadmill/quads/reify"
	"github.com/quadmill/quadmill/quads/server"
)

var listen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose an engine over the line protocol",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("listen") {
			cfg.Listen = listen
		}

		var opts []engine.Option
		if cfg.MaxSteps > 0 {
			opts = append(opts, engine.WithMaxSteps(cfg.MaxSteps))
		}
		eng := engine.New(opts...)

		loader, err := reify.Install(eng, logger)
		if err != nil {
			return fmt.Errorf("install rule loader: %w", err)
		}
		defer loader.Close()

		if cfg.Journal != "" {
			j, err := persist.Open(cfg.Journal, logger)
			if err != nil {
				return err
			}
			defer j.Close()
			n, err := j.Replay(eng)
			if err != nil {
				return err
			}
			logger.Info("journal replayed",
				zap.String("path", cfg.Journal), zap.Int("facts", n))
			if err := j.Attach(eng); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(),
			syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(eng, logger)
		return srv.ListenAndServe(ctx, cfg.Listen)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listen, "listen", "l", "", "TCP listen address")
}
