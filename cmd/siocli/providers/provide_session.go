package providers

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/url"

	"github.com/gbdevw/gowsio/cmd/siocli/configuration"
	"github.com/gbdevw/gowsio/sioclient"
	wsadapterrfc6455 "github.com/gbdevw/gowsio/wscengine/wsadapters/rfc6455"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// # Description
//
// Build the session described by the configuration. The session is closed when the application
// stops.
func ProvideSession(
	lc fx.Lifecycle,
	config configuration.Configuration,
	logger *zap.Logger,
	tracerProvider trace.TracerProvider) (*sioclient.Session, error) {
	target, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, err
	}
	opts := sioclient.NewSessionConfigurationOptions().
		WithAutoReconnect(config.AutoReconnect).
		WithReconnectBaseDelay(config.ReconnectBaseDelay).
		WithReconnectMaxDelay(config.ReconnectMaxDelay).
		WithHandshakePath(config.HandshakePath)
	// Headers and TLS settings are shared by the handshake and the websocket upgrade
	header := http.Header{}
	adapterOpts := wsadapterrfc6455.NewAdapterConfigurationOptions()
	for name, value := range config.Headers {
		header.Add(name, value)
		adapterOpts = adapterOpts.WithHeader(name, value)
	}
	httpTransport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		httpTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		adapterOpts = adapterOpts.WithTrustPolicy(func(serverName string, chain []*x509.Certificate) bool {
			return true
		})
	}
	httpClient := &http.Client{
		Timeout:   sioclient.DefaultBootstrapTimeout,
		Transport: otelhttp.NewTransport(httpTransport, otelhttp.WithTracerProvider(tracerProvider)),
	}
	bootstrapper := sioclient.NewHTTPBootstrapper(httpClient, config.HandshakePath, header, tracerProvider)
	factory := sioclient.NewRFC6455TransportFactory(adapterOpts, nil, logger, tracerProvider, nil)
	session, err := sioclient.NewSession(target, opts, bootstrapper, factory, logger, tracerProvider, nil)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return session.Close(ctx)
		},
	})
	return session, nil
}
