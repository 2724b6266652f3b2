// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// CancelPolicy decides what happens to running processors after the first
// failure.
type CancelPolicy int

const (
	// RunToCompletion lets running processors finish; their outputs are
	// discarded.
	RunToCompletion CancelPolicy = iota
	// Eager additionally cancels the context handed to running processors.
	Eager
)

func (p CancelPolicy) String() string {
	switch p {
	case RunToCompletion:
		return "run-to-completion"
	case Eager:
		return "eager"
	default:
		return fmt.Sprintf("CancelPolicy(%d)", int(p))
	}
}

// ParseCancelPolicy parses the String form of a CancelPolicy.
func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "run-to-completion":
		return RunToCompletion, nil
	case "eager":
		return Eager, nil
	default:
		return 0, fmt.Errorf("invalid cancel policy %q: must be 'run-to-completion' or 'eager'", s)
	}
}

// Config tunes an Executor.
type Config struct {
	// Workers is the size of the worker pool. Zero means GOMAXPROCS.
	Workers int
	// MaxWorkers caps Workers when positive.
	MaxWorkers int
	// HeavyLimit bounds concurrent executions of heavy processors when
	// positive.
	HeavyLimit int
	// Timeout bounds a whole execution when positive.
	Timeout      time.Duration
	CancelPolicy CancelPolicy
}

// Environment variables read by LoadConfig.
const (
	EnvWorkers    = "PRINTGRAPH_WORKERS"
	EnvMaxWorkers = "PRINTGRAPH_MAX_WORKERS"
	EnvHeavyLimit = "PRINTGRAPH_HEAVY_LIMIT"
)

// LoadConfig applies environment overrides to base. Unset or unparsable
// variables leave the corresponding field untouched.
func LoadConfig(base Config) Config {
	cfg := base
	if v := getEnvInt(EnvWorkers, 0); v > 0 {
		cfg.Workers = v
	}
	if v := getEnvInt(EnvMaxWorkers, 0); v > 0 {
		cfg.MaxWorkers = v
	}
	if v := getEnvInt(EnvHeavyLimit, 0); v > 0 {
		cfg.HeavyLimit = v
	}
	return cfg
}

// Validate rejects negative settings.
func (c Config) Validate() error {
	switch {
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	case c.MaxWorkers < 0:
		return fmt.Errorf("max workers must not be negative, got %d", c.MaxWorkers)
	case c.HeavyLimit < 0:
		return fmt.Errorf("heavy limit must not be negative, got %d", c.HeavyLimit)
	case c.Timeout < 0:
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.MaxWorkers > 0 && c.Workers > c.MaxWorkers {
		c.Workers = c.MaxWorkers
	}
	return c
}

// String returns a formatted string representation of the config.
func (c Config) String() string {
	return fmt.Sprintf("Config{Workers: %d, MaxWorkers: %d, HeavyLimit: %d, Timeout: %s, CancelPolicy: %s}",
		c.Workers, c.MaxWorkers, c.HeavyLimit, c.Timeout, c.CancelPolicy)
}

// getEnvInt retrieves an integer from environment variable with default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
