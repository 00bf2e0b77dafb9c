package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"canvas-image-relay/modules/common/config"
	"canvas-image-relay/modules/common/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "canvas-image-relay",
	Short:         "ComfyUI image generation relay",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()
		logger.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, generateCmd)
}

// Execute - main 에서 호출
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Msgf("❌ %v", err)
		os.Exit(1)
	}
}
