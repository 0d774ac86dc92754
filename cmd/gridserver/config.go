// Command gridserver is a thin host around gridcalc.Sheet: a single
// authoritative sheet mutated by text commands over stdin or HTTP, whose
// printable value grid is pushed to read-only websocket subscribers after
// every successful mutation. This extends a stdout traversal into a
// network push without reintroducing multi-user editing: subscribers
// never mutate, only the one command channel does.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the server's runtime parameters, validated with
// go-playground/validator the way mcpxcel's pkg/validation package does.
type Config struct {
	Addr        string        `validate:"required,hostname_port"`
	MaxRows     int           `validate:"gte=1,lte=16384"`
	MaxCols     int           `validate:"gte=1,lte=16384"`
	IdleTimeout time.Duration `validate:"gte=0"`
}

var configValidator = validator.New()

// Validate checks the config against its struct tags.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("gridserver: invalid config: %w", err)
	}
	return nil
}

// parseFlags builds a Config from the command line, applying defaults
// before validation.
func parseFlags() (Config, error) {
	addr := flag.String("addr", "127.0.0.1:8765", "listen address for the websocket broadcaster")
	maxRows := flag.Int("max-rows", 1000, "printable rows considered for the broadcast snapshot")
	maxCols := flag.Int("max-cols", 64, "printable columns considered for the broadcast snapshot")
	idle := flag.Duration("idle-timeout", 30*time.Minute, "close idle subscriber connections after this long")
	flag.Parse()

	cfg := Config{
		Addr:        *addr,
		MaxRows:     *maxRows,
		MaxCols:     *maxCols,
		IdleTimeout: *idle,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
