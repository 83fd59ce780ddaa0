// Package consent gates live-location monitoring on the client's current
// consent state.
package consent

import (
	"context"

	"github.com/arrivohq/arrivo/internal/cache"
	"github.com/arrivohq/arrivo/internal/clock"
	"github.com/arrivohq/arrivo/internal/consent/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Gate answers whether monitoring is permitted for an appointment. Results
// are memoized per appointment, so the monitor and the notification stages
// of one pass share a single lookup. Create one Gate per pass; never share
// across concurrent passes.
type Gate struct {
	db    *gorm.DB
	repo  domain.Repository
	clock clock.Clock
	memo  *cache.TTLCache[snowflake.ID, bool]
}

// NewGate constructs a pass-scoped consent gate.
func NewGate(db *gorm.DB, repo domain.Repository, clk clock.Clock) *Gate {
	return &Gate{
		db:    db,
		repo:  repo,
		clock: clk,
		memo:  cache.NewTTLCache[snowflake.ID, bool](),
	}
}

// HasActiveConsent reports whether the latest consent record for the
// appointment is granted and unexpired as of now. Monitoring is forbidden
// unless this returns true.
func (g *Gate) HasActiveConsent(ctx context.Context, tenantID, appointmentID snowflake.ID) (bool, error) {
	if active, ok := g.memo.Get(appointmentID); ok {
		return active, nil
	}

	record, err := g.repo.Latest(ctx, g.db, tenantID, appointmentID)
	if err != nil {
		return false, err
	}

	active := record != nil && record.Active(g.clock.Now())
	g.memo.Set(appointmentID, active, 0)
	return active, nil
}
