package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semwalk/internal/config"
	logpkg "github.com/kailas-cloud/semwalk/internal/logger"
)

var (
	configPath string
	envFile    string
	logLevel   string

	cfg    config.Config
	logger = zap.NewNop()

	// loadConfig and loadApp are replaced in tests.
	loadConfig = defaultLoadConfig
	loadApp    = buildApp
)

var rootCmd = &cobra.Command{
	Use:   "semwalk",
	Short: "Drift walks over vector corpora",
	Long: `semwalk follows chains of nearest neighbours through a vector corpus.
Each accepted document becomes the next query until the walk runs out of
depth, drops below the score threshold or finds only documents it has seen.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: config/$ENV.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	c, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = c

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	l, err := logpkg.NewLogger(config.GetEnv(), level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	logger = l
	return nil
}

func defaultLoadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load(config.GetEnv())
}
