package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/dreamland-studio/dreamland/internal/config"
)

// Config holds observability settings shared by the logger, tracer and meter.
type Config struct {
	LogLevel  string
	LogFormat string

	OTELEnabled      bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// LoadConfig resolves observability settings from the environment.
func LoadConfig(cfg config.Config) Config {
	endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint == "" {
		endpoint = cfg.OTLPEndpoint
	}

	ratio := 0.1
	if raw := strings.TrimSpace(os.Getenv("OTEL_TRACES_SAMPLER_RATIO")); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 && parsed <= 1 {
			ratio = parsed
		}
	}

	enabled := cfg.Environment == "production"
	if raw, ok := os.LookupEnv("OTEL_ENABLED"); ok {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true", "yes", "on":
			enabled = true
		case "0", "false", "no", "off":
			enabled = false
		}
	}

	return Config{
		LogLevel:  strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		LogFormat: strings.TrimSpace(os.Getenv("LOG_FORMAT")),

		OTELEnabled:      enabled,
		ExporterEndpoint: endpoint,
		ExporterProtocol: strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")),
		SamplingRatio:    ratio,
	}
}

// Debug reports whether the configured log level is verbose.
func (c Config) Debug() bool {
	return strings.ToLower(strings.TrimSpace(c.LogLevel)) == "debug"
}
