// Package punctuality groups the snapshot and event persistence behind the
// monitoring pipeline.
package punctuality

import (
	"github.com/arrivohq/arrivo/internal/punctuality/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("punctuality",
	fx.Provide(
		repository.ProvideSnapshots,
		repository.ProvideEvents,
	),
)
