package billing

import (
	"github.com/courtsidehq/courtside/internal/billing/stripe"
	"github.com/courtsidehq/courtside/internal/billing/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(stripe.NewClient),
	fx.Provide(stripe.NewCodec),
	fx.Provide(webhook.NewService),
)
