package system

import (
	"os"
	"os/signal"
	"syscall"
)

type (
	IExit interface {
		OnSystemExit()
	}
)

var exitHandlers []IExit

func RegisterExitHandler(handler IExit) {
	exitHandlers = append(exitHandlers, handler)
}

func WaitElegantExit(exitFunc ...func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	for i := range c {
		switch i {
		case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
			for _, call := range exitFunc {
				call()
			}
			for _, handler := range exitHandlers {
				handler.OnSystemExit()
			}
			os.Exit(0)
		}
	}
}
