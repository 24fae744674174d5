package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sillyfrog/tesla-mqtt/app"
	"github.com/sillyfrog/tesla-mqtt/config"
	"github.com/sillyfrog/tesla-mqtt/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "tesla-mqtt",
	Short: "Bridge a Tesla car connection and MQTT",
	Long: "tesla-mqtt polls a Tesla vehicle and republishes changed state to MQTT,\n" +
		"translating inbound MQTT commands into vehicle API calls. Every\n" +
		"configuration key can be set via a TESLA_-prefixed environment variable.",
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file (optional)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
