package config

import (
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig      = errors.New("invalid config")
	ErrLoadConfig         = errors.New("load config failed")
	ErrMissingCredentials = errors.New("authority login and code are required")
)
