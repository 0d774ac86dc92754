package main

import (
	"net/http"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := parseFlags()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	srv := newServer(logger, cfg)
	go srv.runStdinCommands()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWebSocket)
	mux.HandleFunc("/cell", srv.handleCommand)

	logger.Info().Str("addr", cfg.Addr).Msg("gridserver listening")
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
