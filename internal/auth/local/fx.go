package local

import "go.uber.org/fx"

// Module wires the local auth handler.
var Module = fx.Module("auth.local",
	fx.Provide(NewHandler),
)
