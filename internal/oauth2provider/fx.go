package oauth2provider

import "go.uber.org/fx"

// Module wires the authorization server.
var Module = fx.Module("oauth2provider",
	fx.Provide(
		DefaultConfig,
		NewStore,
		NewService,
		NewHandler,
	),
)
