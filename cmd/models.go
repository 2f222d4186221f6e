package cmd

import (
	"context"
	"fmt"
	"log"

	"interview-copilot/internal/gemini"
	"interview-copilot/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the Gemini models available to the configured API key",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()

		logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}

		config, err := getConfig()
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}

		apiKey, err := resolveAPIKey(config)
		if err != nil {
			logger.Fatal("loading gemini api key", zap.Error(err))
		}

		generator, err := gemini.NewGenerator(ctx, apiKey, config.Gemini.Model, config.Gemini.MaxRetries, logger)
		if err != nil {
			logger.Fatal("creating gemini generator", zap.Error(err))
		}

		names, err := generator.ListModels(ctx)
		if err != nil {
			logger.Fatal("listing models", zap.Error(err))
		}

		for _, name := range names {
			fmt.Println(name)
		}
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
