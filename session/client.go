package session

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/smart1986/go-sessionlink/config"
	"github.com/smart1986/go-sessionlink/logger"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "DISCONNECTED"
	}
}

const (
	defaultSessionPath       = "/websocket/users/session/"
	defaultHeartbeatInterval = 30 * time.Second
	defaultReconnectInterval = 3 * time.Second
	defaultMaxReconnects     = 5
	defaultDialTimeout       = 5 * time.Second
	defaultWriteTimeout      = 10 * time.Second
)

type (
	ClientConfig struct {
		// Origin: http(s)://host of the console page; scheme decides ws/wss
		Origin               string
		Path                 string
		HeartbeatInterval    time.Duration
		ReconnectInterval    time.Duration
		MaxReconnectAttempts int
		DialTimeout          time.Duration
		WriteTimeout         time.Duration
	}

	// Client owns the single session-control connection. All lifecycle
	// transitions happen under mu; reads and writes on the websocket run
	// outside it.
	Client struct {
		cfg ClientConfig
		bus *Dispatcher

		mu               sync.Mutex
		writeMu          sync.Mutex
		conn             *websocket.Conn
		state            State
		isConnecting     bool
		manualDisconnect bool
		reconnectCount   int
		reconnectTimer   *time.Timer
		heartbeatStop    chan struct{}
	}
)

func ClientConfigFrom(c *config.Config) ClientConfig {
	cc := ClientConfig{
		Origin: c.Session.Origin,
		Path:   c.Session.Path,
	}
	if c.Session.HeartbeatIntervalMs > 0 {
		cc.HeartbeatInterval = time.Duration(c.Session.HeartbeatIntervalMs) * time.Millisecond
	}
	if c.Session.ReconnectIntervalMs > 0 {
		cc.ReconnectInterval = time.Duration(c.Session.ReconnectIntervalMs) * time.Millisecond
	}
	cc.MaxReconnectAttempts = c.Session.MaxReconnectAttempts
	return cc
}

func NewClient(cfg ClientConfig, bus *Dispatcher) *Client {
	if bus == nil {
		bus = NewDispatcher()
	}
	if cfg.Path == "" {
		cfg.Path = defaultSessionPath
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnects
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Client{
		cfg:   cfg,
		bus:   bus,
		state: StateDisconnected,
	}
}

func (c *Client) Bus() *Dispatcher {
	return c.bus
}

// sessionURL mirrors the origin's transport security: https origin gives
// wss, anything else ws. The token rides as a query credential.
func (c *Client) sessionURL(token string) (string, error) {
	u, err := url.Parse(c.cfg.Origin)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" || u.Scheme == "wss" {
		scheme = "wss"
	}
	q := url.Values{}
	q.Set("token", token)
	target := url.URL{
		Scheme:   scheme,
		Host:     u.Host,
		Path:     c.cfg.Path,
		RawQuery: q.Encode(),
	}
	return target.String(), nil
}

// Connect opens the session channel. Returns false without side effect when
// the token is missing or a connection attempt/handle is already live. The
// dial itself completes asynchronously; the result arrives as a connected
// or disconnected event.
func (c *Client) Connect(token string) bool {
	c.mu.Lock()
	if c.isConnecting {
		c.mu.Unlock()
		logger.Warn("Connect skipped: already connecting")
		return false
	}
	if c.conn != nil {
		if c.state == StateConnected || c.state == StateConnecting {
			c.mu.Unlock()
			logger.Warn("Connect skipped: already connected")
			return false
		}
		// stale closed handle, drop it before dialing again
		logger.Debug("Discarding stale session connection")
		c.conn = nil
	}
	if strings.TrimSpace(token) == "" {
		c.mu.Unlock()
		logger.Error("Connect failed: missing auth token")
		return false
	}
	c.isConnecting = true
	c.manualDisconnect = false
	c.state = StateConnecting
	c.mu.Unlock()

	go c.dial(token)
	return true
}

func (c *Client) dial(token string) {
	target, err := c.sessionURL(token)
	if err != nil {
		logger.Error("Bad session origin:", err)
		c.dialFailed(token, err)
		return
	}
	logger.Info("Connecting session channel:", target)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	conn, _, err := websocket.Dial(ctx, target, nil)
	cancel()
	if err != nil {
		logger.Error("Session dial failed:", err)
		c.dialFailed(token, err)
		return
	}

	c.mu.Lock()
	if c.manualDisconnect {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "disconnected during dial")
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.isConnecting = false
	c.reconnectCount = 0
	c.startHeartbeatLocked()
	c.mu.Unlock()

	logger.Info("Session channel established")
	c.bus.Emit(EventConnected, nil)

	go c.readLoop(conn, token)
}

// dialFailed mirrors the browser ordering: error, then close, then a
// reconnect attempt when allowed.
func (c *Client) dialFailed(token string, err error) {
	c.mu.Lock()
	c.isConnecting = false
	c.state = StateClosed
	c.mu.Unlock()

	c.bus.Emit(EventError, err)
	c.afterClose(token, DisconnectInfo{Code: int(websocket.StatusAbnormalClosure), Reason: err.Error()})
}

func (c *Client) readLoop(conn *websocket.Conn, token string) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			code := int(websocket.CloseStatus(err))
			logger.Debug("Session channel closed, code:", code, ", err:", err)

			c.mu.Lock()
			stale := c.conn != conn
			if !stale {
				c.conn = nil
				c.isConnecting = false
				c.state = StateClosed
				c.stopHeartbeatLocked()
			}
			c.mu.Unlock()

			info := DisconnectInfo{Code: code, Reason: err.Error()}
			if stale {
				// superseded handle, report the close but never reconnect
				c.bus.Emit(EventDisconnected, info)
				return
			}
			c.afterClose(token, info)
			return
		}
		e, derr := decodeEnvelope(data)
		if derr != nil {
			logger.Error("Malformed session message dropped:", derr)
			continue
		}
		logger.Debug("Session message received, type:", e.Type)
		c.route(e)
	}
}

func (c *Client) afterClose(token string, info DisconnectInfo) {
	c.bus.Emit(EventDisconnected, info)

	c.mu.Lock()
	schedule := !c.manualDisconnect && c.reconnectCount < c.cfg.MaxReconnectAttempts
	c.mu.Unlock()
	if schedule {
		c.scheduleReconnect(token)
	}
}

// scheduleReconnect counts the attempt first, then waits attempt*interval.
// Linear backoff, bounded by MaxReconnectAttempts.
func (c *Client) scheduleReconnect(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.manualDisconnect {
		return
	}
	c.reconnectCount++
	attempt := c.reconnectCount
	delay := time.Duration(attempt) * c.cfg.ReconnectInterval
	logger.Infof("Scheduling reconnect attempt %d in %v", attempt, delay)

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		ok := !c.manualDisconnect && c.reconnectCount <= c.cfg.MaxReconnectAttempts
		c.reconnectTimer = nil
		c.mu.Unlock()
		if ok {
			logger.Infof("Reconnect attempt %d", attempt)
			c.Connect(token)
		}
	})
}

// Disconnect is idempotent and cancels any pending reconnect before it can
// fire.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manualDisconnect = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.stopHeartbeatLocked()
	conn := c.conn
	connected := c.state == StateConnected
	c.conn = nil
	c.state = StateDisconnected
	c.isConnecting = false
	c.reconnectCount = 0
	c.mu.Unlock()

	if conn != nil && connected {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	logger.Info("Session channel manually disconnected")
}

// Send writes v as a JSON text frame iff the channel is open. Never queues.
func (c *Client) Send(v any) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateConnected
	c.mu.Unlock()
	if conn == nil || !open {
		logger.Warn("Send skipped: session channel not connected")
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("Send failed to encode message:", err)
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	defer cancel()
	c.writeMu.Lock()
	err = conn.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		logger.Error("Send failed:", err)
		return false
	}
	return true
}

func (c *Client) startHeartbeatLocked() {
	c.stopHeartbeatLocked()
	stop := make(chan struct{})
	c.heartbeatStop = stop
	interval := c.cfg.HeartbeatInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !c.IsConnected() {
					continue
				}
				c.Send(Ping{Type: MsgPing, Timestamp: time.Now().UnixMilli()})
			}
		}
	}()
}

func (c *Client) stopHeartbeatLocked() {
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.state == StateConnected
}

func (c *Client) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil && c.state != StateConnecting {
		if c.state == StateClosed {
			return StateClosed
		}
		return StateDisconnected
	}
	return c.state
}
