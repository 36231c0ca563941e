package config

import "errors"

// Package-specific errors
var (
	// ErrParsingConfig is returned when configuration values cannot be parsed into the config struct
	ErrParsingConfig = errors.New("failed to parse configuration values into config")

	// ErrConfigNotLoaded is returned when attempting to access a config that hasn't been loaded
	ErrConfigNotLoaded = errors.New("configuration has not been loaded")

	// ErrNilPointer is returned when a nil pointer is provided to a loader
	ErrNilPointer = errors.New("nil pointer provided to config loader")

	// ErrReadingConfigFile is returned when a configuration file cannot be read
	ErrReadingConfigFile = errors.New("failed to read configuration file")
)
