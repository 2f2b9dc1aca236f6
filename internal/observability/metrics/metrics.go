package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	logins       metric.Int64Counter
	codesIssued  metric.Int64Counter
	tokensIssued metric.Int64Counter
	tokenDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "dreamland"
	}
	meter := provider.Meter(name)

	logins, err := meter.Int64Counter("dreamland_logins_total")
	if err != nil {
		return nil, err
	}
	codesIssued, err := meter.Int64Counter("dreamland_authorization_codes_issued_total")
	if err != nil {
		return nil, err
	}
	tokensIssued, err := meter.Int64Counter("dreamland_tokens_issued_total")
	if err != nil {
		return nil, err
	}
	tokenDenied, err := meter.Int64Counter("dreamland_token_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		logins:       logins,
		codesIssued:  codesIssued,
		tokensIssued: tokensIssued,
		tokenDenied:  tokenDenied,
	}, nil
}

// RecordLogin counts an established session by method (password, google, ...).
func (m *Metrics) RecordLogin(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("method", strings.TrimSpace(method))))
}

// RecordCodeIssued counts minted authorization codes per client.
func (m *Metrics) RecordCodeIssued(ctx context.Context, clientID string) {
	if m == nil {
		return
	}
	m.codesIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("client_id", strings.TrimSpace(clientID))))
}

// RecordTokenIssued counts issued token pairs per grant type.
func (m *Metrics) RecordTokenIssued(ctx context.Context, grantType string) {
	if m == nil {
		return
	}
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("grant_type", strings.TrimSpace(grantType))))
}

// RecordTokenDenied counts token endpoint rejections by error code.
func (m *Metrics) RecordTokenDenied(ctx context.Context, errorCode string) {
	if m == nil {
		return
	}
	m.tokenDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("error", strings.TrimSpace(errorCode))))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
