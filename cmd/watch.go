package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kickwatch/internal/utils"
	"kickwatch/pkg/monitor"
	"kickwatch/pkg/presence"
	"kickwatch/pkg/status"
)

// watchCmd implements: kickwatch watch [channel]
//
// The channel and interval default to the saved settings; passing either on
// the command line updates the config file for the next run.
var watchCmd = &cobra.Command{
	Use:   "watch [channel]",
	Short: "Monitor a channel and update presence on status changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mon, err := buildMonitor(cmd, args, nil)
		if err != nil {
			return err
		}

		waitForInterrupt()
		mon.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntP("interval", "i", 0, fmt.Sprintf("Check interval in seconds (clamped to %d-%d, default from config)", IntervalMin, IntervalMax))
}

// buildMonitor wires fetcher, sink and observers from flags + config and
// starts monitoring. onStatus, when non-nil, is registered as an extra
// status observer.
func buildMonitor(cmd *cobra.Command, args []string, onStatus func(*status.Record)) (*monitor.Monitor, error) {
	channel := viper.GetString("kick.channel")
	if len(args) > 0 {
		channel = args[0]
		if channel != viper.GetString("kick.channel") {
			saveSetting("kick.channel", channel)
		}
	}
	if channel == "" {
		return nil, fmt.Errorf("no channel given and none saved in config")
	}

	intervalSeconds := viper.GetInt("kick.interval")
	if flagInterval, _ := cmd.Flags().GetInt("interval"); flagInterval > 0 {
		if flagInterval != viper.GetInt("kick.interval") {
			saveSetting("kick.interval", flagInterval)
		}
		intervalSeconds = flagInterval
	}
	intervalSeconds = utils.ClampInterval(intervalSeconds, IntervalMin, IntervalMax)

	fetcher := status.NewFetcher()
	fetcher.Log = utils.Log

	var sink presence.Sink = &presence.LogSink{Log: utils.Log}
	if webhook := viper.GetString("presence.webhook"); webhook != "" {
		sink = presence.NewWebhookSink(webhook, utils.Log)
	}

	mon := monitor.New(fetcher, sink)
	mon.Callbacks = monitor.Callbacks{
		OnStatus: func(rec *status.Record) {
			utils.Log.Debugf("check: live=%t title=%q category=%q", rec.Live, rec.Title, rec.Category)
			if onStatus != nil {
				onStatus(rec)
			}
		},
		OnMessage: func(msg string) { utils.Log.Info(msg) },
		OnError:   func(msg string) { utils.Log.Errorf("check failed: %s", msg) },
		OnStopped: func() { utils.Log.Debug("monitor stopped") },
	}

	if err := mon.Start(channel, time.Duration(intervalSeconds)*time.Second); err != nil {
		return nil, err
	}
	return mon, nil
}

func waitForInterrupt() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
