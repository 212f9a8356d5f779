package link

import "github.com/sirupsen/logrus"

type Config struct {
	Logger *logrus.Logger

	// StrictContracts panics on registry contract violations instead of
	// only logging them. Meant for tests and development builds.
	StrictContracts bool
}

func DefaultConfig() Config {
	return Config{
		Logger:          logrus.StandardLogger(),
		StrictContracts: false,
	}
}
