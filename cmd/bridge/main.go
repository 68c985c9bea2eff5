package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/conf"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/infra/telegram"
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Telegram group to query bot bridge",
	Long: `Forwards identity number queries posted in Telegram groups to the
query bot and posts the formatted results back to the originating group.

Runs as a user account (userbot). Log in once with "bridge login" before
starting the bridge with "bridge run".`,
	SilenceUsage: true,
	RunE:         runBridge,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine, the environment may carry everything
		_ = godotenv.Load(conf.ConfigPath())
	},
}

func init() {
	rootCmd.AddCommand(runCmd, loginCmd, groupsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads and validates configuration and builds the logger
func setup() (*conf.Config, *zap.Logger, error) {
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := conf.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func newTelegramClient(cfg *conf.Config, logger *zap.Logger) *telegram.Client {
	return telegram.NewClient(telegram.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		SessionPath: cfg.Telegram.SessionPath,
	}, logger)
}
