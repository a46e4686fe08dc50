package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pior/redis"
	"github.com/pior/redis/internal/config"
	"github.com/pior/redis/promexporter"
	"github.com/spf13/cobra"
)

// app holds what the sub-commands share, built once the flags are parsed.
type app struct {
	envFile string

	cfg         config.Config
	logger      *slog.Logger
	client      *redis.Client
	stopMetrics context.CancelFunc
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "redis-cli",
		Short:         "Command-line client for Redis-compatible servers",
		Long:          "redis-cli sends commands to a Redis-compatible server and prints the replies.\nEvery flag can also be set with a REDIS_<FLAG> environment variable or in the .env file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.repl(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional file of REDIS_ variables")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newReplCommand(a),
		newExecCommand(a),
		newPingCommand(a),
		newBenchCommand(a),
		newMonitorCommand(a),
	)
	return root
}

// run executes root with args. The client and the metrics server are closed
// on return, also when the command failed.
func (a *app) run(ctx context.Context, root *cobra.Command, args []string) error {
	defer a.close()

	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Root().PersistentFlags(), a.envFile)
	if err != nil {
		return err
	}

	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	clientConfig, err := cfg.Client(logger)
	if err != nil {
		return err
	}

	client, err := redis.NewClient(nil, clientConfig)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.client = client

	if cfg.MetricsAddr != "" {
		a.serveMetrics(cmd.Context())
	}

	logger.Debug("client ready", "addr", clientConfig.Addr(), "encoding", clientConfig.Encoding.String())
	return nil
}

func (a *app) serveMetrics(ctx context.Context) {
	ctx, a.stopMetrics = context.WithCancel(ctx)
	exporter := promexporter.NewExporter(a.client)

	go func() {
		if err := exporter.Serve(ctx, a.cfg.MetricsAddr); err != nil {
			a.logger.Error("metrics server failed", "addr", a.cfg.MetricsAddr, "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", a.cfg.MetricsAddr, "path", "/metrics")
}

func (a *app) close() {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.client != nil {
		a.client.Close()
	}
}
