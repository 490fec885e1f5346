package http

import (
	"net"
	"time"

	"github.com/turtacn/pathway-overlay/internal/config"
)

func configForTest() config.ServerConfig {
	return config.ServerConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second}
}

func netListen() (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:0")
}
