package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smart1986/go-sessionlink/logger"
	"github.com/smart1986/go-sessionlink/schedule"
	"github.com/smart1986/go-sessionlink/session"
	"github.com/smart1986/go-sessionlink/system"
	"github.com/smart1986/go-sessionlink/util"
)

// StatusUnauthorized is the close code sent to unauthenticated or revoked
// connections.
const StatusUnauthorized websocket.StatusCode = 4001

type (
	// Authenticator resolves a raw query token to a user identity.
	Authenticator interface {
		Resolve(token string) (user string, err error)
	}

	// TokenIdentity treats the token itself as the identity. Real
	// deployments plug in their own resolver.
	TokenIdentity struct{}

	Server struct {
		Addr           string
		Path           string
		Auth           Authenticator
		OriginPatterns []string
		IdleTimeout    time.Duration
		SweepInterval  time.Duration
		PushPoolSize   int

		engine  *gin.Engine
		pool    *util.WorkerPool
		sched   *schedule.Scheduler
		clients sync.Map // connectId string -> *SessionConn

		revokedMu sync.Mutex
		revoked   map[string]struct{}
	}
)

func (TokenIdentity) Resolve(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}

func (s *Server) ensureInit() {
	if s.engine != nil {
		return
	}
	if s.Path == "" {
		s.Path = "/websocket/users/session/"
	}
	if s.Auth == nil {
		s.Auth = TokenIdentity{}
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = 90 * time.Second
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = 30 * time.Second
	}
	if s.PushPoolSize <= 0 {
		s.PushPoolSize = 16
	}
	s.revoked = make(map[string]struct{})
	s.pool = util.NewPool(s.PushPoolSize)
	s.sched = schedule.NewScheduler()
	s.sched.AddJob(&schedule.Task{
		TaskName: "session-sweeper",
		TaskFunc: s.sweepIdle,
		Interval: int64(s.SweepInterval / time.Second),
	})

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), logRequests())
	s.engine.GET(s.Path, s.wsHandler)
	api := s.engine.Group("/api/session")
	api.POST("/kick", s.kickHandler)
	api.POST("/force_logout", s.forceLogoutHandler)
	api.GET("/online", s.onlineHandler)
}

// Handler exposes the configured engine, mainly for tests running the
// gateway inside httptest.
func (s *Server) Handler() http.Handler {
	s.ensureInit()
	return s.engine
}

func (s *Server) Start() {
	s.ensureInit()
	go func() {
		logger.Info("Session gateway started at ", s.Addr, " path=", s.Path)
		if err := s.engine.Run(s.Addr); err != nil {
			panic(err)
		}
	}()
	system.RegisterExitHandler(s)
}

func logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("Request: %s %s %v", c.Request.Method, c.Request.RequestURI, time.Since(start))
	}
}

func (s *Server) wsHandler(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 2048)
			n := runtime.Stack(buf, false)
			logger.Error("wsHandler panic:", r)
			logger.Error("Stack trace:", string(buf[:n]))
		}
	}()

	insecureSkipVerify := len(s.OriginPatterns) == 0
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:     s.OriginPatterns,
		InsecureSkipVerify: insecureSkipVerify,
	})
	if err != nil {
		logger.Error("Gateway: websocket accept error:", err)
		return
	}

	token := c.Query("token")
	user, aerr := s.Auth.Resolve(token)
	if aerr != nil || s.isRevoked(token) {
		logger.Warn("Gateway: rejecting unauthenticated connection")
		_ = conn.Close(StatusUnauthorized, "unauthorized")
		return
	}

	client := &SessionConn{
		ConnectId:  uuid.New(),
		User:       user,
		Token:      token,
		Conn:       conn,
		lastActive: time.Now(),
	}
	s.clients.Store(client.GetConnectId(), client)
	logger.Debug("Session connected:", c.Request.RemoteAddr, ", ConnectId:", client.ConnectId, ", user:", user)

	client.SendJSON(gin.H{
		"type":     session.MsgConnectionEstablished,
		"message":  "已连接到用户会话管理服务",
		"username": user,
	})

	defer s.closeConn(client, websocket.StatusNormalClosure, "closing connection")

	ctx := c.Request.Context()
	for {
		_, data, rerr := conn.Read(ctx)
		if rerr != nil {
			logger.Debug("Session connection lost:", client.ConnectId, ", err:", rerr)
			return
		}
		client.touch()
		s.handleInbound(client, data)
	}
}

func (s *Server) handleInbound(client *SessionConn, data []byte) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warn("Gateway: malformed frame dropped:", err)
		return
	}
	msgType, _ := msg["type"].(string)
	switch msgType {
	case session.MsgPing:
		client.SendJSON(gin.H{
			"type":      session.MsgPong,
			"timestamp": msg["timestamp"],
		})
	case "user_status_check":
		client.SendJSON(gin.H{
			"type":      session.MsgUserStatus,
			"is_online": true,
			"username":  client.User,
		})
	default:
		logger.Debug("Gateway: unhandled client message type:", msgType)
	}
}

type kickRequest struct {
	Username string `json:"username" binding:"required"`
	Reason   string `json:"reason"`
	KickedBy string `json:"kicked_by"`
}

func (s *Server) kickHandler(c *gin.Context) {
	var req kickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "管理员操作"
	}
	if req.KickedBy == "" {
		req.KickedBy = "admin"
	}
	n := s.pushToUser(req.Username, gin.H{
		"type":      session.MsgKickedOut,
		"message":   "您已被管理员踢出系统",
		"reason":    req.Reason,
		"kicked_by": req.KickedBy,
		"timestamp": time.Now().UnixMilli(),
	}, true)
	c.JSON(http.StatusOK, gin.H{"notified": n})
}

type forceLogoutRequest struct {
	Username string `json:"username" binding:"required"`
	Reason   string `json:"reason"`
}

func (s *Server) forceLogoutHandler(c *gin.Context) {
	var req forceLogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "系统维护"
	}
	n := s.pushToUser(req.Username, gin.H{
		"type":      session.MsgForceLogout,
		"message":   "您已被强制退出系统",
		"reason":    req.Reason,
		"timestamp": time.Now().UnixMilli(),
	}, true)
	c.JSON(http.StatusOK, gin.H{"notified": n})
}

func (s *Server) onlineHandler(c *gin.Context) {
	users := make(map[string]int)
	s.clients.Range(func(_, value any) bool {
		sc := value.(*SessionConn)
		users[sc.User]++
		return true
	})
	c.JSON(http.StatusOK, gin.H{"online": users})
}

// pushToUser fans the payload out to every connection of the user through
// the worker pool. revoke additionally bars the tokens from reconnecting
// and closes the connections once notified.
func (s *Server) pushToUser(user string, payload gin.H, revoke bool) int {
	count := 0
	s.clients.Range(func(_, value any) bool {
		sc := value.(*SessionConn)
		if sc.User != user {
			return true
		}
		count++
		if revoke {
			s.revokeToken(sc.Token)
		}
		s.pool.SubmitSafe(func() {
			sc.SendJSON(payload)
			if revoke {
				s.closeConn(sc, websocket.StatusNormalClosure, "session terminated")
			}
		})
		return true
	})
	logger.Infof("Pushed %s to %d connection(s) of user %s", payload["type"], count, user)
	return count
}

func (s *Server) revokeToken(token string) {
	s.revokedMu.Lock()
	s.revoked[token] = struct{}{}
	s.revokedMu.Unlock()
}

func (s *Server) isRevoked(token string) bool {
	s.revokedMu.Lock()
	_, ok := s.revoked[token]
	s.revokedMu.Unlock()
	return ok
}

func (s *Server) sweepIdle() {
	s.clients.Range(func(_, value any) bool {
		sc := value.(*SessionConn)
		if sc.idleSince() > s.IdleTimeout {
			logger.Info("Sweeping idle session:", sc.ConnectId, ", user:", sc.User)
			s.closeConn(sc, websocket.StatusGoingAway, "idle timeout")
		}
		return true
	})
}

func (s *Server) closeConn(sc *SessionConn, code websocket.StatusCode, reason string) {
	if _, loaded := s.clients.LoadAndDelete(sc.GetConnectId()); !loaded {
		return
	}
	_ = sc.Conn.Close(code, reason)
	logger.Debug("Session connection closed:", sc.ConnectId)
}

func (s *Server) OnSystemExit() {
	s.sched.Stop()
	s.clients.Range(func(_, value any) bool {
		s.closeConn(value.(*SessionConn), websocket.StatusGoingAway, "server shutdown")
		return true
	})
	logger.Info("Session gateway released")
}
