package config

import (
	"gopkg.in/yaml.v3"
	"log"
	"os"
)

var GlobalConfig *Config

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yml:"server"`
	Log struct {
		Level         string `yaml:"level"`
		File          string `yaml:"file"`
		FileEnable    bool   `yaml:"fileEnable"`
		ConsoleEnable bool   `yaml:"consoleEnable"`
		MaxSize       int    `yaml:"maxSize"`
		MaxAge        int    `yaml:"maxAge"`
		MaxBack       int    `yaml:"maxBack"`
	} `yml:"log"`
	Session struct {
		// Origin: http://host or https://host; decides ws/wss and target host
		Origin               string `yaml:"origin"`
		Path                 string `yaml:"path"`
		HeartbeatIntervalMs  int64  `yaml:"heartbeatIntervalMs"`
		ReconnectIntervalMs  int64  `yaml:"reconnectIntervalMs"`
		MaxReconnectAttempts int    `yaml:"maxReconnectAttempts"`
		CountdownTicks       int    `yaml:"countdownTicks"`
		CountdownTickMs      int64  `yaml:"countdownTickMs"`
		LogoutDelayMs        int64  `yaml:"logoutDelayMs"`
		NavigateDelayMs      int64  `yaml:"navigateDelayMs"`
	} `yml:"session"`
	Gateway struct {
		IdleTimeoutSec   int64 `yaml:"idleTimeoutSec"`
		SweepIntervalSec int64 `yaml:"sweepIntervalSec"`
		PushPoolSize     int   `yaml:"pushPoolSize"`
	} `yml:"gateway"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		Db       int    `yaml:"db"`
		PoolSize int    `yaml:"poolSize"`
		Prefix   string `yaml:"prefix"`
	} `yml:"redis"`
}

func InitConfig(fullName string, config *Config) {
	file, err := os.ReadFile(fullName)
	if err != nil {
		log.Fatalf("read config file error: %v", err)
	}
	err = yaml.Unmarshal(file, config)
	if err != nil {
		log.Fatalf("unmarshal config file error: %v", err)
	}
	GlobalConfig = config

}
func InitConfigCustomize(fullName string, config interface{}) {
	file, err := os.ReadFile(fullName)
	if err != nil {
		log.Fatalf("read config file error: %v", err)
	}
	err = yaml.Unmarshal(file, config)
	if err != nil {
		log.Fatalf("unmarshal config file error: %v", err)
	}
}
