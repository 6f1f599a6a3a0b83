package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/mockdrive/go/internal/config"
)

// loadConfig reads .env, the environment and the optional policy file, and
// sets up the global logger.
func loadConfig() *config.Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	log.Info().
		Str("port", cfg.Port).
		Int("max_warnings", cfg.Policy.MaxWarnings).
		Bool("lenient_verdict", cfg.Policy.Machine.LenientVerdict).
		Str("policy_path", cfg.PolicyPath).
		Msg("configuration loaded")
	return cfg
}
