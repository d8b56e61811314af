package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iurnickita/posmart/internal/auth"
	"github.com/iurnickita/posmart/internal/backend"
	"github.com/iurnickita/posmart/internal/config"
	"github.com/iurnickita/posmart/internal/handler"
	"github.com/iurnickita/posmart/internal/logger"
	"github.com/iurnickita/posmart/internal/service"
	"github.com/iurnickita/posmart/internal/snapshot"
	"github.com/iurnickita/posmart/internal/store"
	"github.com/iurnickita/posmart/internal/token"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "posd",
		Short:         "Point-of-sale cart service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.GetConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	issue := &cobra.Command{
		Use:   "token <operator>",
		Short: "Issue an operator token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.GetConfig(configPath)
			if err != nil {
				return err
			}
			issuer, err := token.NewIssuer(cfg.Token)
			if err != nil {
				return err
			}
			raw, err := issuer.Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}

	root.AddCommand(serve, issue)
	return root
}

func run(ctx context.Context, cfg config.Config) error {
	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	zaplog.Info("store opened", zap.String("driver", cfg.Store.Driver))

	issuer, err := token.NewIssuer(cfg.Token)
	if err != nil {
		return err
	}

	auth := auth.NewAuth(issuer)
	client := backend.NewClient(cfg.Backend)
	service := service.NewService(client, snapshot.NewRepository(store), zaplog)

	return handler.Serve(ctx, cfg.Handler, auth, service, zaplog)
}
