package observability

import (
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"github.com/dreamland-studio/dreamland/internal/config"
	"github.com/dreamland-studio/dreamland/internal/observability/logger"
	"github.com/dreamland-studio/dreamland/internal/observability/metrics"
	"github.com/dreamland-studio/dreamland/internal/observability/tracing"
)

// Module wires logging, tracing and metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		newLoggerConfig,
		newTracingConfig,
		newMetricsConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
	),
	fx.Invoke(
		func(_ *sdktrace.TracerProvider) {},
		func(_ metric.MeterProvider) {},
	),
)

func newLoggerConfig(appCfg config.Config, obsCfg Config) logger.Config {
	return logger.Config{
		ServiceName: appCfg.AppName,
		Environment: appCfg.Environment,
		Version:     appCfg.AppVersion,
		Level:       obsCfg.LogLevel,
		Format:      obsCfg.LogFormat,

		IncludeCaller:       true,
		IncludeStackOnError: appCfg.Environment == "production",
	}
}

func newTracingConfig(appCfg config.Config, obsCfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          obsCfg.OTELEnabled,
		ServiceName:      appCfg.AppName,
		ServiceVersion:   appCfg.AppVersion,
		Environment:      appCfg.Environment,
		ExporterEndpoint: obsCfg.ExporterEndpoint,
		ExporterProtocol: obsCfg.ExporterProtocol,
		SamplingRatio:    obsCfg.SamplingRatio,
	}
}

func newMetricsConfig(appCfg config.Config, obsCfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          obsCfg.OTELEnabled,
		ExporterEndpoint: obsCfg.ExporterEndpoint,
		ExporterProtocol: obsCfg.ExporterProtocol,
		ServiceName:      appCfg.AppName,
		Environment:      appCfg.Environment,
	}
}
