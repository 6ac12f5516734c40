package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"MarketBrief/internal/di"
	"MarketBrief/internal/domain/models"
	"MarketBrief/pkg/config"
)

// errRunFailed makes the process exit non-zero after the outcome was printed.
var errRunFailed = errors.New("run failed")

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "marketbrief",
		Short:         "MarketBrief - gold market briefing pipeline",
		Long:          `MarketBrief gathers the gold price and market headlines, asks a generative model for an analysis and delivers it to Telegram.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadWithEnv(configPath)
		if err != nil {
			return nil, fmt.Errorf("config load failed: %w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(newServeCmd(load))
	rootCmd.AddCommand(newRunCmd(load))
	rootCmd.AddCommand(newConfigCmd(load))

	return rootCmd
}

type loader func() (*config.Config, error)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP trigger and the optional scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}

			app, cleanup, err := di.InitializeApp(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "app initialization failed: %v\n", err)
				return err
			}
			defer cleanup()

			if err := app.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "app error: %v\n", err)
				return err
			}
			return nil
		},
	}
}

func newRunCmd(load loader) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline run and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}

			svc, cleanup, err := di.InitializeReportService(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "initialization failed: %v\n", err)
				return err
			}
			defer cleanup()

			o, err := svc.Trigger(context.Background(), reason)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(models.NewRunResponse(o)); err != nil {
				return err
			}

			if !o.Succeeded() {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "cli", "trigger label recorded with the run")

	return cmd
}

func newConfigCmd(load loader) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: env=%s feeds=%d strategy=%s cache=%s\n",
				cfg.Environment, len(cfg.Feeds.URLs), cfg.Model.Strategy, cfg.Cache.Type)
			return nil
		},
	})

	return configCmd
}
