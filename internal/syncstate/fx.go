package syncstate

import (
	"github.com/courtsidehq/courtside/internal/syncstate/repository"
	"github.com/courtsidehq/courtside/internal/syncstate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("syncstate",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
