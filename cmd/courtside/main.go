package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/courtsidehq/courtside/internal/billing"
	"github.com/courtsidehq/courtside/internal/checkout"
	"github.com/courtsidehq/courtside/internal/config"
	"github.com/courtsidehq/courtside/internal/identity"
	"github.com/courtsidehq/courtside/internal/migration"
	"github.com/courtsidehq/courtside/internal/observability"
	"github.com/courtsidehq/courtside/internal/plan"
	"github.com/courtsidehq/courtside/internal/ratelimit"
	"github.com/courtsidehq/courtside/internal/reconcile"
	"github.com/courtsidehq/courtside/internal/server"
	"github.com/courtsidehq/courtside/internal/syncstate"
	"github.com/courtsidehq/courtside/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		plan.Module,
		syncstate.Module,
		identity.Module,
		billing.Module,
		reconcile.Module,
		checkout.Module,
		ratelimit.Module,

		fx.Provide(server.NewEngine),
		fx.Invoke(server.NewServer),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
