package transport

import (
	"time"

	"github.com/sirupsen/logrus"
)

const defaultConnectTimeout = 10 * time.Second

type Config struct {
	// ConnectTimeout bounds a client connect. Zero leaves it to the OS.
	ConnectTimeout time.Duration
	ReuseAddr      bool
	Logger         *logrus.Logger
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: defaultConnectTimeout,
		ReuseAddr:      true,
		Logger:         logrus.StandardLogger(),
	}
}
