package email

import (
	"go.uber.org/fx"

	"github.com/dreamland-studio/dreamland/internal/config"
)

// Module wires the mail provider.
var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig selects the provider named by EMAIL_PROVIDER.
func NewFromConfig(cfg config.Config) Provider {
	switch cfg.Email.Provider {
	case "smtp":
		return NewSMTP(Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
		})
	default:
		return &NoOpProvider{}
	}
}
