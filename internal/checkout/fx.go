package checkout

import (
	"github.com/courtsidehq/courtside/internal/checkout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout",
	fx.Provide(service.New),
)
