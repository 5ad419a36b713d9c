package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kickwatch/internal/utils"
	"kickwatch/pkg/status"
)

// statusCmd implements: kickwatch status <channel>
var statusCmd = &cobra.Command{
	Use:   "status <channel>",
	Short: "Fetch a channel's live status once and print it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fetcher := status.NewFetcher()
		fetcher.Log = utils.Log

		rec, err := fetcher.Fetch(args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("channel %q not found", args[0])
		}

		if rec.Live {
			fmt.Printf("%s is LIVE\n", rec.Channel)
			fmt.Printf("  title:    %s\n", rec.Title)
			if rec.Category != "" {
				fmt.Printf("  category: %s\n", rec.Category)
			}
		} else {
			fmt.Printf("%s is offline\n", rec.Channel)
		}
		fmt.Printf("  url:      %s\n", rec.URL)
		fmt.Printf("  fetched:  %s\n", rec.FetchedAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
