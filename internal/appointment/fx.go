package appointment

import (
	"github.com/arrivohq/arrivo/internal/appointment/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("appointment",
	fx.Provide(repository.Provide),
)
