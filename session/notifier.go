package session

import (
	"time"

	"github.com/smart1986/go-sessionlink/logger"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

type (
	// Notice is one transient user-facing message. Notices sharing a Key
	// replace each other in the same visible slot; Duration 0 means sticky.
	// OnClose fires when the user dismisses the notice.
	Notice struct {
		Level       Level
		Content     string
		Description string
		Duration    time.Duration
		Key         string
		OnClose     func()
	}

	// Notifier renders notices. The rendering mechanism lives outside this
	// module; LogNotifier is the fallback.
	Notifier interface {
		Push(n Notice)
	}
)

// LogNotifier writes notices to the log only.
type LogNotifier struct{}

func (LogNotifier) Push(n Notice) {
	switch n.Level {
	case LevelError:
		logger.Error("[notice]", n.Content, n.Description)
	case LevelWarn:
		logger.Warn("[notice]", n.Content, n.Description)
	default:
		logger.Info("[notice]", n.Content, n.Description)
	}
}
