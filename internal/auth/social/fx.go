package social

import (
	"go.uber.org/fx"

	"github.com/dreamland-studio/dreamland/internal/clock"
	"github.com/dreamland-studio/dreamland/internal/config"
)

// Module wires social login.
var Module = fx.Module("auth.social",
	fx.Provide(
		NewClient,
		NewResolver,
		NewHandler,
		newStateCodec,
	),
)

func newStateCodec(cfg config.Config, clk clock.Clock) *StateCodec {
	return NewStateCodec(cfg.StateSecret, clk, cfg.AuthCookieSecure)
}
