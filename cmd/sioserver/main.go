package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gbdevw/gowsio/cmd/sioserver/providers"
	"github.com/gbdevw/gowsio/sioserver"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// Environment variable which overrides the default listen address
const envAddr = "SIOSERVER_ADDR"

var config = providers.Configuration{
	Addr:              "0.0.0.0:8081",
	HeartbeatInterval: 25 * time.Second,
	HeartbeatTimeout:  60 * time.Second,
}

var rootCmd = &cobra.Command{
	Use:   "sioserver",
	Short: "Socket.IO 0.9 test server: echoes messages and events, acks requests",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fx.New(
			fx.Supply(config),
			fx.Provide(providers.ProvideLogger),
			fx.Provide(providers.ProvideSocketIOServer),
			// Use invoke to force dependency to be instanciated and hooks to be registered and executed
			fx.Invoke(func(*sioserver.SocketIOServer) {}),
		).Run()
	},
}

func init() {
	if addr, ok := os.LookupEnv(envAddr); ok {
		config.Addr = addr
	}
	rootCmd.Flags().StringVar(&config.Addr, "addr", config.Addr, "listen address (env: "+envAddr+")")
	rootCmd.Flags().DurationVar(&config.HeartbeatInterval, "heartbeat-interval", config.HeartbeatInterval, "interval between server heartbeats, 0 to disable")
	rootCmd.Flags().DurationVar(&config.HeartbeatTimeout, "heartbeat-timeout", config.HeartbeatTimeout, "heartbeat timeout advertised to clients")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
