package sioclient

import (
	"net/url"

	"github.com/gbdevw/gowsio/wscengine"
	wsadapterrfc6455 "github.com/gbdevw/gowsio/wscengine/wsadapters/rfc6455"
	"github.com/gbdevw/gowsio/wscengine/wsclient"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Interface of the factory used by sessions to create a websocket transport for each attachment
// attempt.
type TransportFactory interface {
	// Create a new idle transport which will report to the provided listener.
	NewTransport(target *url.URL, listener wsclient.WebsocketClientInterface) (wscengine.WebsocketTransportInterface, error)
}

// Factory which creates websocket transports backed by the RFC6455 socket adapter.
type RFC6455TransportFactory struct {
	adapterOpts    *wsadapterrfc6455.AdapterConfigurationOptions
	transportOpts  *wscengine.WebsocketTransportConfigurationOptions
	logger         *zap.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// # Description
//
// Factory which creates a new RFC6455TransportFactory.
//
// # Inputs
//
//   - adapterOpts: Socket adapter options (TLS, trust policy, headers, ...). If nil, defaults are used.
//   - transportOpts: Transport options. If nil, defaults are used.
//   - logger: Logger. If nil, a no-op logger is used.
//   - tracerProvider: Tracer provider. If nil, the global tracer provider is used.
//   - meterProvider: Meter provider. If nil, the global meter provider is used.
func NewRFC6455TransportFactory(
	adapterOpts *wsadapterrfc6455.AdapterConfigurationOptions,
	transportOpts *wscengine.WebsocketTransportConfigurationOptions,
	logger *zap.Logger,
	tracerProvider trace.TracerProvider,
	meterProvider metric.MeterProvider) *RFC6455TransportFactory {
	return &RFC6455TransportFactory{
		adapterOpts:    adapterOpts,
		transportOpts:  transportOpts,
		logger:         logger,
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
	}
}

// Create a RFC6455 adapter and a transport which uses it.
func (f *RFC6455TransportFactory) NewTransport(target *url.URL, listener wsclient.WebsocketClientInterface) (wscengine.WebsocketTransportInterface, error) {
	adapter, err := wsadapterrfc6455.NewRFC6455WebsocketConnectionAdapter(f.adapterOpts)
	if err != nil {
		return nil, err
	}
	transport, err := wscengine.NewWebsocketTransport(target, adapter, listener, f.transportOpts, f.logger, f.tracerProvider, f.meterProvider)
	if err != nil {
		return nil, err
	}
	return transport, nil
}
