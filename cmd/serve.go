package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kickwatch/internal/server"
	"kickwatch/internal/utils"
)

// serveCmd implements: kickwatch serve [channel]
//
// Runs the same monitor as `watch` and additionally exposes the latest
// status over HTTP (JSON snapshot + websocket stream).
var serveCmd = &cobra.Command{
	Use:   "serve [channel]",
	Short: "Monitor a channel and serve its status over HTTP",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = viper.GetString("server.addr")
		}

		srv := server.New(addr, utils.Log)

		mon, err := buildMonitor(cmd, args, srv.Publish)
		if err != nil {
			return err
		}

		go func() {
			utils.Log.Infof("Status server listening on %s", addr)
			if err := srv.Run(); err != nil && err != http.ErrServerClosed {
				utils.Log.Errorf("status server: %v", err)
			}
		}()

		waitForInterrupt()
		mon.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("interval", "i", 0, "Check interval in seconds (clamped, default from config)")
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
}
