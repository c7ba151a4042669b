// Command gymctl inspects and exports a GymBody schedule and its sheet sync queue
// from the command line.
package main

import (
	"fmt"
	"os"
	"time"

	"gymbody/internal/config"
	"gymbody/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:          "gymctl",
	Short:        "GymBody schedule and account tooling",
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(hashPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "configs/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "Config file (default: $CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output JSON")
}

// loadConfig reads the config and returns a logger that only reports warnings to
// stderr, keeping stdout for command output.
func loadConfig() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logCfg := cfg.Logging
	logCfg.Level = "warn"
	logCfg.Format = "console"
	return cfg, logging.NewWithWriter(os.Stderr, logCfg, cfg.App), nil
}

func pickGym(cfg *config.Config, id string) (string, error) {
	if id == "" {
		return cfg.Gyms[0].ID, nil
	}
	if _, ok := cfg.Gym(id); !ok {
		return "", fmt.Errorf("unknown gym %q", id)
	}
	return id, nil
}

func now() time.Time {
	return time.Now()
}
