package session

import (
	"github.com/smart1986/go-sessionlink/logger"
)

// route classifies one inbound envelope by its type discriminator. Control
// acknowledgements (connection confirmation, pong, status pushes) are
// log-only; kick and force-logout become typed events; everything else is
// surfaced as a generic message event.
func (c *Client) route(e *Envelope) {
	switch e.Type {
	case MsgConnectionEstablished:
		logger.Info("Session channel confirmed:", e.Message)
	case MsgKickedOut:
		logger.Warn("Kicked out by server:", e.Message)
		c.bus.Emit(EventKickedOut, e)
	case MsgForceLogout:
		logger.Warn("Force logout from server:", e.Message)
		c.bus.Emit(EventForcedLogout, e)
	case MsgPong:
		logger.Debug("Heartbeat pong received")
	case MsgUserStatus:
		logger.Debug("User status update:", e.Payload)
	default:
		logger.Debug("Unhandled message type:", e.Type)
		c.bus.Emit(EventMessage, e)
	}
}
