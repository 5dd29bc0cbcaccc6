package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/iamvkosarev/amc-discord/config"
	"github.com/iamvkosarev/amc-discord/internal/app"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "amcbot",
	Short: "amcbot - Discord integration of the ASEAN Motor Club server",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("[main] failed to load .env: %v", err)
		}
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the community bot (translation relay, /bot agent, announcements)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), app.RunBot)
	},
}

var devBotCmd = &cobra.Command{
	Use:   "devbot",
	Short: "Run JARVIS, the codebase assistant",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), app.RunDevBot)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to the yaml config")
	rootCmd.AddCommand(botCmd, devBotCmd)
}

func run(ctx context.Context, runner func(context.Context, *config.Config) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runner(ctx, cfg)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
