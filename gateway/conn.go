package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/smart1986/go-sessionlink/logger"
)

// SessionConn is one accepted session-control connection.
type SessionConn struct {
	ConnectId uuid.UUID
	User      string
	Token     string
	Conn      *websocket.Conn

	writeMu    sync.Mutex
	activeMu   sync.Mutex
	lastActive time.Time
}

func (sc *SessionConn) touch() {
	sc.activeMu.Lock()
	sc.lastActive = time.Now()
	sc.activeMu.Unlock()
}

func (sc *SessionConn) idleSince() time.Duration {
	sc.activeMu.Lock()
	defer sc.activeMu.Unlock()
	return time.Since(sc.lastActive)
}

// SendJSON writes one JSON text frame. A write failure closes the
// connection so the read loop exits promptly.
func (sc *SessionConn) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("SessionConn: encode error:", err)
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sc.writeMu.Lock()
	err = sc.Conn.Write(ctx, websocket.MessageText, data)
	sc.writeMu.Unlock()
	if err != nil {
		logger.Error("SessionConn: write error:", err)
		_ = sc.Conn.Close(websocket.StatusAbnormalClosure, "write error")
		return false
	}
	return true
}

func (sc *SessionConn) GetConnectId() string {
	return sc.ConnectId.String()
}
