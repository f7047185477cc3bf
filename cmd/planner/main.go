// Command planner runs the study-planner HTTP service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"studyplanner/internal/canvas"
	"studyplanner/internal/config"
	"studyplanner/internal/gcal"
	"studyplanner/internal/logging"
	"studyplanner/internal/planner"
	"studyplanner/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "planner",
		Short:        "Study planner service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	models := &cobra.Command{
		Use:   "models",
		Short: "List models available on the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd.Context(), configPath)
		},
	}

	root.AddCommand(serve, models)
	return root
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := planner.NewClient(cfg.OpenRouter, logger)
	client.SelectModels(ctx)
	primary, fallback := client.Models()
	logger.Info("models selected",
		zap.String("primary", primary),
		zap.String("fallback", fallback))

	svc := planner.NewService(client, logger, cfg.Location())
	cv := canvas.NewClient(logger)
	if cfg.Canvas.URL != "" && cfg.Canvas.AccessToken != "" {
		if err := cv.Authenticate(ctx, cfg.Canvas.URL, cfg.Canvas.AccessToken); err != nil {
			logger.Warn("canvas credentials from config rejected", zap.Error(err))
		}
	}

	var sink *gcal.Sink
	if cfg.Google.ClientID != "" && cfg.Google.ClientSecret != "" {
		sink = gcal.NewSink(cfg.Google, logger, cfg.Location())
	} else {
		logger.Warn("google calendar disabled, client credentials not configured")
	}

	srv := server.New(cfg, logger, svc, cv, sink)
	logger.Info("listening", zap.String("addr", cfg.Addr()))
	return srv.Start(ctx)
}

func runModels(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client := planner.NewClient(cfg.OpenRouter, logger)
	ids, err := client.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
