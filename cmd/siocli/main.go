package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gbdevw/gowsio/cmd/siocli/configuration"
	"github.com/gbdevw/gowsio/cmd/siocli/providers"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "siocli",
	Short:         "Socket.IO 0.9 command line client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a Socket.IO server and print received events",
	Long: `Connect to a Socket.IO server and print every received event until interrupted.

Values are read from the configuration file (--config) and overridden by the flags set on
the command line. An event can be emitted once connected with --emit and --args.`,
	Example: `  siocli connect --url http://localhost:8081 --endpoint /chat --emit hello --args '["world"]'
  siocli connect --config siocli.yaml --insecure`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	configuration.RegisterFlags(connectCmd.Flags())
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	config, err := configuration.FromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	app := fx.New(
		fx.Supply(config),
		fx.Provide(providers.ProvideLogger),
		fx.Provide(providers.ProvideTracerProvider),
		fx.Provide(providers.ProvideSession),
		fx.Provide(providers.ProvideEventLogger),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		// Use invoke to register the client and force the session to be built
		fx.Invoke(providers.RegisterClient),
	)
	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	// Wait for an interrupt or a shutdown requested by the event logger
	signal := <-app.Wait()
	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}
	if signal.ExitCode != 0 {
		return fmt.Errorf("session ended with exit code %d", signal.ExitCode)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
