package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "Versioned content tree store CLI",
	Long:  "CLI for inspecting canopy stores: journals, checkpoints and tree contents.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/canopy/config.yaml)")
	rootCmd.PersistentFlags().String("store-dir", "", "store directory (default: ~/.local/share/canopy)")

	viper.BindPFlag("store_dir", rootCmd.PersistentFlags().Lookup("store-dir"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CANOPY")
	viper.AutomaticEnv()
	viper.SetDefault("store_dir", defaultStoreDir())

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "canopy")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "canopy")
	}
	return ".canopy"
}

func defaultStoreDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "canopy")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "canopy")
	}
	return ".canopy"
}

func getStoreDir() string {
	return viper.GetString("store_dir")
}
