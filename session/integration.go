package session

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/smart1986/go-sessionlink/config"
	"github.com/smart1986/go-sessionlink/logger"
	"github.com/smart1986/go-sessionlink/storage"
)

type LogoutKind string

const (
	LogoutKicked LogoutKind = "kicked"
	LogoutForced LogoutKind = "force"
	LogoutNormal LogoutKind = "normal"
)

const (
	kickNoticeKey   = "kick-out-notification"
	forcedNoticeKey = "force-logout-notification"
	loginRoute      = "/#/login"

	defaultCountdownTicks = 5
	defaultCountdownTick  = time.Second
	defaultLogoutDelay    = 500 * time.Millisecond
	defaultNavigateDelay  = time.Second
)

type (
	IntegrationConfig struct {
		CountdownTicks int
		CountdownTick  time.Duration
		LogoutDelay    time.Duration
		NavigateDelay  time.Duration
	}

	// Integration coordinates the session channel with the rest of the
	// console: it decides when to connect based on the persisted login
	// state and runs the kick/force-logout countdown sequence. Construct
	// exactly one per process and hand it to every consumer.
	Integration struct {
		client   *Client
		store    storage.Store
		notifier Notifier
		navigate func(target string)
		cfg      IntegrationConfig

		mu          sync.Mutex
		initialized bool
		currentUser string
		active      *countdown
	}
)

func IntegrationConfigFrom(c *config.Config) IntegrationConfig {
	ic := IntegrationConfig{
		CountdownTicks: c.Session.CountdownTicks,
	}
	if c.Session.CountdownTickMs > 0 {
		ic.CountdownTick = time.Duration(c.Session.CountdownTickMs) * time.Millisecond
	}
	if c.Session.LogoutDelayMs > 0 {
		ic.LogoutDelay = time.Duration(c.Session.LogoutDelayMs) * time.Millisecond
	}
	if c.Session.NavigateDelayMs > 0 {
		ic.NavigateDelay = time.Duration(c.Session.NavigateDelayMs) * time.Millisecond
	}
	return ic
}

func NewIntegration(client *Client, store storage.Store, notifier Notifier, navigate func(target string), cfg IntegrationConfig) *Integration {
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if navigate == nil {
		navigate = func(target string) {
			logger.Info("Navigate requested:", target)
		}
	}
	if cfg.CountdownTicks <= 0 {
		cfg.CountdownTicks = defaultCountdownTicks
	}
	if cfg.CountdownTick <= 0 {
		cfg.CountdownTick = defaultCountdownTick
	}
	if cfg.LogoutDelay <= 0 {
		cfg.LogoutDelay = defaultLogoutDelay
	}
	if cfg.NavigateDelay <= 0 {
		cfg.NavigateDelay = defaultNavigateDelay
	}
	i := &Integration{
		client:   client,
		store:    store,
		notifier: notifier,
		navigate: navigate,
		cfg:      cfg,
	}
	i.setupEventHandlers()
	return i
}

func (i *Integration) setupEventHandlers() {
	bus := i.client.Bus()
	bus.On(EventConnected, func(any) {
		logger.Info("Session channel connected")
	})
	bus.On(EventDisconnected, func(data any) {
		info, _ := data.(DisconnectInfo)
		if info.Code != 1000 && i.isLoggedIn() {
			logger.Warn("Session channel lost unexpectedly, code:", info.Code)
			return
		}
		logger.Info("Session channel disconnected")
	})
	bus.On(EventKickedOut, func(data any) {
		if e, ok := data.(*Envelope); ok {
			logger.Warn("Kick notification received:", e.Message)
			i.startCountdown(LogoutKicked, e)
		}
	})
	bus.On(EventForcedLogout, func(data any) {
		if e, ok := data.(*Envelope); ok {
			logger.Warn("Force-logout notification received:", e.Message)
			i.startCountdown(LogoutForced, e)
		}
	})
	bus.On(EventError, func(data any) {
		logger.Error("Session channel error:", data)
		if i.isLoggedIn() {
			logger.Warn("Realtime session control degraded")
		}
	})
}

// Initialize is idempotent. A second call only repairs a channel that
// should be up but is not; the first call connects when the persisted
// login state says so and marks the layer initialized either way.
func (i *Integration) Initialize() {
	i.mu.Lock()
	already := i.initialized
	i.initialized = true
	i.mu.Unlock()

	token, _ := i.store.Get(storage.KeyToken)
	loggedIn, _ := i.store.Get(storage.KeyIsLoggedIn)
	shouldConnect := token != "" && loggedIn == "true"

	if already {
		if shouldConnect && !i.client.IsConnected() {
			logger.Info("Session channel down, reconnecting")
			i.ConnectWebSocket(token)
		}
		return
	}

	if shouldConnect {
		i.ConnectWebSocket(token)
	} else {
		logger.Info("Not logged in, session channel stays down")
	}
}

func (i *Integration) ConnectWebSocket(token string) {
	if token == "" {
		logger.Warn("Cannot open session channel: missing token")
		return
	}
	if i.client.IsConnected() {
		logger.Info("Session channel already connected")
		return
	}
	if i.client.Connect(token) {
		logger.Info("Session channel connect started")
	} else {
		logger.Info("Session channel connect skipped")
	}
}

func (i *Integration) DisconnectWebSocket() {
	i.client.Disconnect()
}

func (i *Integration) startCountdown(kind LogoutKind, e *Envelope) {
	level := LevelError
	key := kickNoticeKey
	describe := fmt.Sprintf("原因：%s (操作者：%s)", e.Reason, e.KickedBy)
	if kind == LogoutForced {
		level = LevelWarn
		key = forcedNoticeKey
		describe = fmt.Sprintf("原因：%s", e.Reason)
	}

	cd := newCountdown()
	i.mu.Lock()
	if i.active != nil {
		i.active.cancel()
	}
	i.active = cd
	i.mu.Unlock()

	logout := func() { cd.fire(func() { i.PerformLogout(kind) }) }

	render := func(remaining int) {
		i.notifier.Push(Notice{
			Level:       level,
			Content:     fmt.Sprintf("%s - %d秒后自动退出", e.Message, remaining),
			Description: describe,
			Duration:    0,
			Key:         key,
			OnClose:     logout,
		})
	}
	final := func() {
		i.notifier.Push(Notice{
			Level:       level,
			Content:     fmt.Sprintf("%s - 正在退出登录...", e.Message),
			Description: describe,
			Duration:    2 * time.Second,
			Key:         key,
		})
	}
	cd.run(i.cfg.CountdownTicks, i.cfg.CountdownTick, i.cfg.LogoutDelay,
		render, final, func() { i.PerformLogout(kind) })
}

// PerformLogout tears the session down: channel, persisted state, optional
// message, navigation. Whatever fails along the way, the navigation signal
// still fires after its delay.
func (i *Integration) PerformLogout(kind LogoutKind) {
	logger.Infof("Performing logout, kind: %s", kind)

	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 2048)
				n := runtime.Stack(buf, false)
				logger.Error("Logout sequence error:", r)
				logger.Error("Stack trace:", string(buf[:n]))
			}
		}()

		i.DisconnectWebSocket()

		for _, key := range storage.SessionKeys {
			if err := i.store.Delete(key); err != nil {
				logger.Error("Failed to clear session key:", key, ", err:", err)
			}
		}

		// kick and forced kinds already told the user via the countdown
		if kind == LogoutNormal {
			i.notifier.Push(Notice{
				Level:    LevelInfo,
				Content:  "已退出登录",
				Duration: 2 * time.Second,
			})
		}
	}()

	time.AfterFunc(i.cfg.NavigateDelay, func() {
		i.navigate(loginRoute)
	})
}

func (i *Integration) isLoggedIn() bool {
	token, _ := i.store.Get(storage.KeyToken)
	loggedIn, _ := i.store.Get(storage.KeyIsLoggedIn)
	return token != "" && loggedIn == "true"
}

func (i *Integration) ConnectionStatus() State {
	return i.client.Status()
}

func (i *Integration) IsWebSocketConnected() bool {
	return i.client.IsConnected()
}

func (i *Integration) SendMessage(v any) bool {
	return i.client.Send(v)
}

func (i *Integration) AddEventListener(evt Event, fn Handler) int {
	return i.client.Bus().On(evt, fn)
}

func (i *Integration) RemoveEventListener(evt Event, id int) {
	i.client.Bus().Off(evt, id)
}

// Reset prepares the layer for a fresh login session without discarding
// the instance.
func (i *Integration) Reset() {
	logger.Info("Resetting session integration")
	i.teardown()
}

func (i *Integration) Cleanup() {
	i.teardown()
}

func (i *Integration) teardown() {
	i.DisconnectWebSocket()
	i.mu.Lock()
	if i.active != nil {
		i.active.cancel()
		i.active = nil
	}
	i.initialized = false
	i.currentUser = ""
	i.mu.Unlock()
}
