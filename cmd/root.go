package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "interview-copilot"

	// Interview modes.
	ModeCopilot    = "copilot"
	ModeSimulation = "simulation"
)

type Config struct {
	Resume        string        `mapstructure:"resume"`
	Mode          string        `mapstructure:"mode"`
	InterviewType string        `mapstructure:"interview-type"`
	AnswerStyle   string        `mapstructure:"answer-style"`
	SessionFile   string        `mapstructure:"session-file"`
	PromptsDir    string        `mapstructure:"prompts-dir"`
	Gemini        *GeminiConfig `mapstructure:"gemini"`
	Speech        *SpeechConfig `mapstructure:"speech"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type SpeechConfig struct {
	ServerURL      string        `mapstructure:"server-url"`
	SampleRate     int           `mapstructure:"sample-rate"`
	SilenceTimeout time.Duration `mapstructure:"silence-timeout"`
	MaxDuration    time.Duration `mapstructure:"max-duration"`
	WavFile        string        `mapstructure:"wav-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-copilot is a Gemini-powered interview assistant: practice interviews against your own resume or get live answer suggestions",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-copilot.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A .env next to the binary may carry GEMINI_API_KEY; missing files are fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		// An explicitly requested config file must parse.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app + ".yaml")

	// Everything has a default or a flag, so a missing config file is fine too.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Gemini == nil {
		config.Gemini = &GeminiConfig{}
	}

	return config, nil
}
