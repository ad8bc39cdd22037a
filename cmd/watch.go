package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yono39/cytui/channel"
	"github.com/yono39/cytui/cytube"
	"github.com/yono39/cytui/history"
	"github.com/yono39/cytui/settings"
	"github.com/yono39/cytui/ui"
)

// watchCmd joins a channel and runs the full-screen chat/watch view.
var watchCmd = &cobra.Command{
	Use:   "watch [channel]",
	Short: "Join a channel and watch along",
	Long: `Joins the channel, renders its chat, playlist and polls, and mirrors
the channel's playback timeline. With no argument the configured
default channel is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := settings.NewViperRepository(viper.GetViper())
		cfg := repo.Load()

		channelName := cfg.Channel
		if len(args) > 0 {
			channelName = args[0]
		}
		if channelName == "" {
			return fmt.Errorf("no channel given and none configured")
		}

		store, err := history.Open(defaultHistoryDB())
		if err != nil {
			fmt.Fprintf(os.Stderr, "chat history disabled: %v\n", err)
			store = nil
		} else {
			defer store.Close()
		}

		client := cytube.NewClientWithBase(&http.Client{Timeout: 15 * time.Second}, cfg.ServiceURL)

		var recorder channel.Recorder
		if store != nil {
			recorder = store
		}
		sess := channel.NewSession(client, repo, recorder)
		client.AddEventListener(sess)
		sess.Start()
		defer sess.Close()

		sess.SetChannel(channelName)

		if err := ui.New(sess, store, channelName).Run(); err != nil {
			return fmt.Errorf("ui: %w", err)
		}
		sess.Disconnect()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
