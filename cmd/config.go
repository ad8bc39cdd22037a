package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yono39/cytui/settings"
)

// configCmd inspects or updates the stored settings.
var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Gets or sets stored settings",
	Long: `Without arguments, prints the current settings. With a key and a
value, updates that setting in the config file.

Settable keys: channel, username, service_url, sync_threshold, history_size.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := settings.NewViperRepository(viper.GetViper())
		cfg := repo.Load()

		if len(args) == 0 {
			fmt.Printf("service_url:    %s\n", cfg.ServiceURL)
			fmt.Printf("channel:        %s\n", cfg.Channel)
			fmt.Printf("username:       %s\n", cfg.Username)
			fmt.Printf("sync_threshold: %d\n", cfg.SyncThreshold)
			fmt.Printf("history_size:   %d\n", cfg.HistorySize)
			return nil
		}
		if len(args) == 1 {
			return fmt.Errorf("missing value for %q", args[0])
		}

		key, value := args[0], args[1]
		switch key {
		case "channel":
			cfg.Channel = value
		case "username":
			cfg.Username = value
		case "service_url":
			cfg.ServiceURL = value
		case "sync_threshold":
			if _, err := fmt.Sscanf(value, "%d", &cfg.SyncThreshold); err != nil {
				return fmt.Errorf("sync_threshold must be a number: %w", err)
			}
		case "history_size":
			if _, err := fmt.Sscanf(value, "%d", &cfg.HistorySize); err != nil {
				return fmt.Errorf("history_size must be a number: %w", err)
			}
		default:
			return fmt.Errorf("unknown setting %q", key)
		}

		if err := repo.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("%s set to %s\n", key, value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
