package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qedis-go/qedis/config"
	"github.com/qedis-go/qedis/internal/demo"
	"github.com/qedis-go/qedis/server"
)

var version = "dev"

type serveFlags struct {
	configPath string
	listen     string
	password   string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// interrupted marks a shutdown that was requested via signal rather than
// caused by a server failure, so main can exit 0 instead of reporting it
// as an error.
type interrupted struct{ signal os.Signal }

func (i interrupted) Error() string { return i.signal.String() }

func rootCmd() *cobra.Command {
	flags := &serveFlags{}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the qedis protocol server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}
	serve.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML config file (optional, overrides defaults)")
	serve.Flags().StringVar(&flags.listen, "listen", "", "Override the listen address from the config")
	serve.Flags().StringVar(&flags.password, "password", "", "Override the AUTH password from the config")

	root := &cobra.Command{
		Use:   "qedis-server",
		Short: "qedis is a Redis-protocol-compatible client dispatch core",
	}
	root.AddCommand(serve)
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func runServe(flags *serveFlags) error {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Development = false
	zapCfg.Level.SetLevel(zap.InfoLevel)
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg := config.DefaultConfig()
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if flags.listen != "" {
		cfg.Listen = flags.listen
	}
	if flags.password != "" {
		cfg.Password = flags.password
	}

	store := demo.NewStore(cfg.Password, 16)
	table := demo.NewTable()
	slog := demo.NewSlowLog(cfg.SlowLogThresholdMicros, 128)
	repl := demo.NewNoneReplication()

	srv := server.New(cfg, server.Collaborators{
		Store:       store,
		Table:       table,
		SlowLog:     slog,
		Replication: repl,
		Logger:      log,
	})

	ctx := context.Background()
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return srv.Run(ctx)
	})
	wg.Go(func() error {
		return waitInterrupted(ctx)
	})

	if err := wg.Wait(); err != nil {
		if _, ok := err.(interrupted); ok {
			log.Infof("qedis-server: shutting down: %v", err)
			return nil
		}
		return err
	}
	return nil
}

func waitInterrupted(ctx context.Context) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-ch:
		return interrupted{signal: sig}
	case <-ctx.Done():
		return ctx.Err()
	}
}
