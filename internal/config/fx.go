package config

import "go.uber.org/fx"

// Module wires application and plan-table configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewPlanTableHolder,
	),
)
