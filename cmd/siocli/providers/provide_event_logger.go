package providers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gbdevw/gowsio/cmd/siocli/configuration"
	"github.com/gbdevw/gowsio/sioclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Client event handler which logs every event and emits the configured event once connected.
type EventLogger struct {
	logger        *zap.Logger
	emit          string
	args          []any
	autoReconnect bool
	shutdowner    fx.Shutdowner
	// Set once the configured event has been emitted. Only accessed by HandleEvent.
	emitted bool
}

func ProvideEventLogger(config configuration.Configuration, logger *zap.Logger, shutdowner fx.Shutdowner) (*EventLogger, error) {
	args, err := config.EmitArgs()
	if err != nil {
		return nil, err
	}
	return &EventLogger{
		logger:        logger,
		emit:          config.Emit,
		args:          args,
		autoReconnect: config.AutoReconnect,
		shutdowner:    shutdowner,
	}, nil
}

func (h *EventLogger) HandleEvent(ctx context.Context, client *sioclient.Client, event sioclient.Event) {
	logger := h.logger.With(zap.String("client", client.Id()), zap.String("endpoint", client.Endpoint()), zap.String("kind", event.Kind()))
	switch e := event.(type) {
	case sioclient.ConnectEvent:
		if e.Err != nil {
			logger.Error("could not connect", zap.Error(e.Err))
			h.shutdown(logger, 1)
			return
		}
		logger.Info("connected")
		h.emitOnce(ctx, client, logger)
	case sioclient.ReconnectEvent:
		logger.Info("reconnected")
	case sioclient.MessageEvent:
		logger.Info("message received", zap.String("data", e.Data), zap.Bool("ack_requested", e.Ack != nil))
	case sioclient.JSONMessageEvent:
		logger.Info("json message received", zap.ByteString("data", e.Data), zap.Bool("ack_requested", e.Ack != nil))
	case sioclient.NamedEvent:
		logger.Info("event received", zap.String("name", e.Name), zap.Any("args", e.Args), zap.Bool("ack_requested", e.Ack != nil))
	case sioclient.ErrorEvent:
		logger.Warn("error received", zap.Error(e.Err))
	case sioclient.DisconnectEvent:
		logger.Warn("disconnected", zap.Error(e.Err))
		switch {
		case e.Err == nil, errors.Is(e.Err, sioclient.ErrSessionClosed):
		case errors.Is(e.Err, sioclient.ErrEndpointDisconnected):
			// The client has been removed from the session
			h.shutdown(logger, 0)
		case !h.autoReconnect:
			h.shutdown(logger, 1)
		}
	}
}

func (h *EventLogger) emitOnce(ctx context.Context, client *sioclient.Client, logger *zap.Logger) {
	if h.emit == "" || h.emitted {
		return
	}
	h.emitted = true
	err := client.Emit(ctx, h.emit, h.args, func(args []json.RawMessage) {
		logger.Info("ack received", zap.String("name", h.emit), zap.Any("args", args))
	})
	if err != nil {
		logger.Error("could not emit event", zap.String("name", h.emit), zap.Error(err))
		return
	}
	logger.Info("event emitted", zap.String("name", h.emit), zap.Any("args", h.args))
}

func (h *EventLogger) shutdown(logger *zap.Logger, code int) {
	if err := h.shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
		logger.Error("could not shutdown", zap.Error(err))
	}
}

// # Description
//
// Register the hook which connects the client when the application starts.
func RegisterClient(lc fx.Lifecycle, config configuration.Configuration, session *sioclient.Session, handler *EventLogger, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			client, err := session.Connect(ctx, config.Endpoint, handler)
			if err != nil {
				return err
			}
			logger.Info("client registered", zap.String("client", client.Id()), zap.String("endpoint", client.Endpoint()))
			return nil
		},
	})
}
