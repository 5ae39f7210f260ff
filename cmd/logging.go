package cmd

import (
	"github.com/achilleasa/widebvh/config"
	"github.com/achilleasa/widebvh/log"
	"github.com/urfave/cli"
)

var logger = log.New("widebvh")

// Apply the configured log level; the -v and -vv flags take precedence.
func setupLogging(ctx *cli.Context, cfg config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
	return nil
}

// Load the configuration named by the global --config flag, apply command
// line overrides and set up logging.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.LoadConfig(ctx.GlobalString("config"))
	if err != nil {
		return cfg, err
	}

	if workers := ctx.GlobalInt("workers"); workers > 0 {
		cfg.Pipeline.Build.Workers = workers
	}
	if ctx.Bool("spatial") {
		cfg.Pipeline.SpatialSplits = true
	}
	if err = cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, setupLogging(ctx, cfg)
}
