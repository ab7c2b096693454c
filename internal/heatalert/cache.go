package heatalert

import (
	"time"

	"github.com/i474232898/climate-backend/internal/store"
)

// Cache holds the most recent leaderboard. It is written by the scheduler and
// read concurrently by handlers; the lock is never held across network I/O.
type Cache struct {
	alerts *store.List[HeatAlert]
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{alerts: store.NewList[HeatAlert]()}
}

// Snapshot returns a copy of the current leaderboard, empty before the first refresh.
func (c *Cache) Snapshot() []HeatAlert {
	return c.alerts.Snapshot()
}

// Replace atomically swaps in a new leaderboard.
func (c *Cache) Replace(alerts []HeatAlert, at time.Time) {
	c.alerts.Replace(alerts, at)
}

// UpdatedAt reports when the leaderboard was last replaced.
func (c *Cache) UpdatedAt() time.Time {
	return c.alerts.UpdatedAt()
}
