package reconcile

import (
	"context"

	"github.com/courtsidehq/courtside/internal/plan"
	reconciledomain "github.com/courtsidehq/courtside/internal/reconcile/domain"
	"github.com/courtsidehq/courtside/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(func(r *plan.Resolver) reconciledomain.PlanResolver { return r }),
	fx.Provide(service.New),
	fx.Provide(service.NewSweeper),
	fx.Invoke(runSweeper),
)

func runSweeper(lc fx.Lifecycle, sweeper *service.Sweeper) {
	if !sweeper.Enabled() {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sweeper.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
