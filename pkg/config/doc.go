// Package config provides typed configuration loading from environment
// variables and YAML files.
//
// Environment loading is cached per struct type for the lifetime of the
// process, which makes configuration access cheap and deterministic:
//
//	type StreamConfig struct {
//		EndpointURL string `env:"LIVEFEED_ENDPOINT_URL,required"`
//	}
//
//	var cfg StreamConfig
//	config.MustLoad(&cfg)
//
// A .env file in the working directory is loaded once before the first
// environment parse, matching the twelve-factor development workflow.
//
// File loading is a thin YAML layer for deployments that prefer mounted
// config files over environment variables:
//
//	var cfg StreamConfig
//	if err := config.LoadFile("livefeed.yaml", &cfg); err != nil {
//		// Handle error
//	}
package config
