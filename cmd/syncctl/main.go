// Command syncctl operates the marketplace sync pipeline from a shell:
// it issues operator tokens and runs sync or drain passes without the
// HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/bootstrap"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/logger"
)

type rootOptions struct {
	output   string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "syncctl",
		Short:         "Operate the marketplace sync pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", formatTable, "output format: table, json, yaml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		tokenCmd(opts),
		syncCmd(opts),
		drainCmd(opts),
		queueCmd(opts),
		ordersCmd(opts),
		jobsCmd(opts),
		configCmd(opts),
	)
	return root
}

func (o *rootOptions) printer(cmd *cobra.Command) (*printer, error) {
	return newPrinter(cmd.OutOrStdout(), o.output)
}

// withContainer loads configuration, assembles the pipeline and releases
// it after fn returns.
func (o *rootOptions) withContainer(ctx context.Context, fn func(context.Context, *bootstrap.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(&logger.Config{
		Level:      o.logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "15:04:05",
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	c, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			log.Warn("Error releasing resources", zap.Error(err))
		}
	}()
	return fn(ctx, c)
}
