package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/foresight-labs/lmsr-marketmaker/internal/app"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run [config-path]",
	Short: "Start the maker bot",
	Long: `Starts the LMSR maker bot against every market listed in the
config file: connects the WebSocket feed, fuses quote signals into a
fair-value estimate, and posts maker-only orders whenever the edge and
risk checks clear.

config-path defaults to config.toml. Secrets (API key/secret/
passphrase, wallet private key) are read from the environment, loaded
first from a .env file if one is present.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	configPath := "config.toml"
	if len(args) > 0 {
		configPath = args[0]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Bot.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, configPath)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	if err := application.Run(); err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
