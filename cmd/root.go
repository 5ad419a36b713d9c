package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"kickwatch/internal/utils"
)

var cfgFile string

const (
	// IntervalMin and IntervalMax bound the polling interval in seconds.
	IntervalMin = 10
	IntervalMax = 30
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kickwatch",
	Short: "Watch a kick.com channel and drive presence indicators on status changes.",
	Long: `kickwatch polls a kick.com channel for its live status, and updates
presence indicators (log output, webhooks, a local status API) only when the
status actually changes.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kickwatch.yaml)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".kickwatch")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.kickwatch.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default values for all keys
	viper.SetDefault("kick.channel", "")
	viper.SetDefault("kick.interval", 30)
	viper.SetDefault("presence.webhook", "")
	viper.SetDefault("server.addr", "127.0.0.1:8976")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// saveSetting persists a user-driven settings change back to the config file.
func saveSetting(key string, value any) {
	viper.Set(key, value)
	if err := viper.WriteConfig(); err != nil {
		utils.Log.Warnf("Could not save setting %s: %v", key, err)
	}
}
