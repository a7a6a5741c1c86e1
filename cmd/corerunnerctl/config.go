package main

import "github.com/kelseyhightower/envconfig"

// config holds the environment-driven defaults for corerunnerctl's bench
// subcommand; command-line flags (bound via pflag/cobra) override whatever
// this loads.
type config struct {
	Workers  int    `envconfig:"CORERUNNER_WORKERS" default:"4"`
	Jobs     int    `envconfig:"CORERUNNER_JOBS" default:"1000"`
	LogLevel string `envconfig:"CORERUNNER_LOG_LEVEL" default:"info"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}
