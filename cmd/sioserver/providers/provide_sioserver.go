package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/gbdevw/gowsio/sioserver"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Server settings
type Configuration struct {
	// Listen address
	Addr string
	// Interval between two heartbeats sent by the server. Zero disables server heartbeats.
	HeartbeatInterval time.Duration
	// Heartbeat timeout advertised in handshake responses
	HeartbeatTimeout time.Duration
}

func ProvideSocketIOServer(lc fx.Lifecycle, config Configuration, logger *zap.Logger) (*sioserver.SocketIOServer, error) {
	opts := sioserver.NewServerOptions()
	opts.HeartbeatInterval = config.HeartbeatInterval
	opts.HeartbeatTimeout = config.HeartbeatTimeout
	srv, err := sioserver.NewSocketIOServer(&http.Server{Addr: config.Addr}, opts, logger, nil, nil)
	if err != nil {
		return nil, err
	}
	// Register Start and Stop hooks to Start and Stop the server
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := srv.Start(); err != nil {
				return err
			}
			logger.Info("socket.io server started", zap.String("url", srv.URL()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop()
		},
	})
	return srv, nil
}
