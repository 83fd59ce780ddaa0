package consent

import (
	"github.com/arrivohq/arrivo/internal/consent/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("consent",
	fx.Provide(repository.Provide),
)
