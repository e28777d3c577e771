package main

import (
	"flag"
	"time"

	"github.com/smart1986/go-sessionlink/config"
	"github.com/smart1986/go-sessionlink/gateway"
	"github.com/smart1986/go-sessionlink/logger"
	"github.com/smart1986/go-sessionlink/system"
)

func main() {
	configPath := flag.String("config", "./config.yml", "config file path")
	flag.Parse()

	config.InitConfig(*configPath, &config.Config{})
	logger.NewLogger(config.GlobalConfig)

	c := config.GlobalConfig
	server := &gateway.Server{
		Addr:          c.Server.Addr,
		Path:          c.Session.Path,
		IdleTimeout:   time.Duration(c.Gateway.IdleTimeoutSec) * time.Second,
		SweepInterval: time.Duration(c.Gateway.SweepIntervalSec) * time.Second,
		PushPoolSize:  c.Gateway.PushPoolSize,
	}
	server.Start()

	system.WaitElegantExit()
}
