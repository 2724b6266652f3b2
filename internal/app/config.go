package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/printgraph/internal/engine"
	"github.com/specialistvlad/printgraph/internal/storage"
)

// Storage backends selectable through Config.Storage.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageAzure  = "azure"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	TemplatePath string // hcl file or directory
	RequestPath  string // request JSON; empty means {}
	OutDir       string // result documents; empty disables writing them

	// SweepAttribute names the attribute overridden by each SweepValues
	// entry, e.g. "rotation" with "23", "90", "123".
	SweepAttribute string
	SweepValues    []string

	Engine engine.Config

	Storage    string
	StorageDir string
	Azure      storage.AzureBlobConfig

	OTLPEndpoint string

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.TemplatePath == "" {
		return nil, errors.New("TemplatePath is a required configuration field and cannot be empty")
	}
	if cfg.SweepAttribute == "" && len(cfg.SweepValues) > 0 {
		return nil, errors.New("sweep values given without an attribute name")
	}
	if cfg.SweepAttribute != "" && len(cfg.SweepValues) == 0 {
		return nil, fmt.Errorf("sweep over %q has no values", cfg.SweepAttribute)
	}

	if cfg.Storage == "" {
		cfg.Storage = StorageFile
	}
	switch cfg.Storage {
	case StorageFile:
		if cfg.StorageDir == "" {
			return nil, errors.New("file storage requires a storage directory")
		}
	case StorageMemory:
	case StorageAzure:
		if cfg.Azure.ConnectionString == "" || cfg.Azure.Container == "" {
			return nil, errors.New("azure storage requires a connection string and a container")
		}
	default:
		return nil, fmt.Errorf("invalid storage %q: must be '%s', '%s' or '%s'", cfg.Storage, StorageFile, StorageMemory, StorageAzure)
	}

	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
