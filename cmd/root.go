package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	serviceURLKey    = "service_url"
	channelKey       = "channel"
	usernameKey      = "username"
	syncThresholdKey = "sync_threshold"
	historySizeKey   = "history_size"
	historyDBKey     = "history_db"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cytui",
	Short: "A terminal client for CyTube-style watch-together channels",
	Long: `cytui joins a synchronized-watching channel, shows its chat,
playlist and polls in the terminal and keeps a local player in sync
with the channel's timeline.

Run "cytui watch <channel>" to join a channel.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cytui.yaml)")
	rootCmd.PersistentFlags().String("service", "https://cytu.be", "Base URL of the service for partition lookups")
	rootCmd.PersistentFlags().String("channel", "", "Channel to join by default")
	rootCmd.PersistentFlags().String("username", "", "Account name for automatic login")
	rootCmd.PersistentFlags().Int64("sync-threshold", 2000, "Playback drift in milliseconds before a hard seek")
	rootCmd.PersistentFlags().Int("history-size", 1000, "Chat messages kept in memory")
	rootCmd.PersistentFlags().String("history-db", "", "Path of the chat history database (default $HOME/.cytui.history.db)")

	viper.BindPFlag(serviceURLKey, rootCmd.PersistentFlags().Lookup("service"))
	viper.BindPFlag(channelKey, rootCmd.PersistentFlags().Lookup("channel"))
	viper.BindPFlag(usernameKey, rootCmd.PersistentFlags().Lookup("username"))
	viper.BindPFlag(syncThresholdKey, rootCmd.PersistentFlags().Lookup("sync-threshold"))
	viper.BindPFlag(historySizeKey, rootCmd.PersistentFlags().Lookup("history-size"))
	viper.BindPFlag(historyDBKey, rootCmd.PersistentFlags().Lookup("history-db"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".cytui")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

func defaultHistoryDB() string {
	if path := viper.GetString(historyDBKey); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cytui.history.db"
	}
	return filepath.Join(home, ".cytui.history.db")
}
