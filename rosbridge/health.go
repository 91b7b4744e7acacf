package rosbridge

import (
	"github.com/c360/semstreams-rosbridge/health"
)

// Health maps the connection state onto a health status: connected is
// healthy, connecting is degraded and disconnected is unhealthy. It fits
// health.Check.
func (c *Connection) Health() health.Status {
	c.mu.Lock()
	state, lastErr := c.state, c.lastErr
	c.mu.Unlock()

	switch state {
	case Connected:
		return health.NewHealthy(c.name, "connected")
	case Connecting:
		return health.NewDegraded(c.name, "connecting")
	default:
		if lastErr != nil {
			return health.FromError(c.name, lastErr)
		}
		return health.NewUnhealthy(c.name, "disconnected")
	}
}
