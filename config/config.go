// Package config loads caustic's runtime configuration from TOML, in the
// shape of the teacher's kv/config.Config: a struct of defaulted fields
// plus a Validate method, decoded with BurntSushi/toml the way
// scheduler/server/config.Config is, and wired to the same
// pingcap/log-backed SetupLogger.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Sciss/caustic/errors"
)

// Config is caustic's top-level configuration: where the backend keeps
// its data, how aggressively Schema retries a conflicted commit, and how
// the process logs.
type Config struct {
	// Backend selects the storage implementation the caustic command
	// opens. Only "memory" is built into this module; other names fail
	// Validate so a typo in a config file is caught at startup rather than
	// silently falling back to memory.
	Backend string `toml:"backend"`

	// DBPath is where a persistent backend would keep its data. It is
	// unused by the in-memory backend and not checked by Validate.
	DBPath string `toml:"db-path"`

	// RetryBaseDelay and RetryMaxDelay are retry delay bounds, checked by
	// Validate. Nothing in this module passes them to store.Schema, which
	// falls back to its own 10ms..2s schedule when given none.
	RetryBaseDelay time.Duration `toml:"retry-base-delay"`
	RetryMaxDelay  time.Duration `toml:"retry-max-delay"`

	// Log is the pingcap/log logger configuration, decoded verbatim the
	// way scheduler/server/config.Config embeds one.
	Log log.Config `toml:"log"`
}

// NewDefaultConfig returns the configuration a fresh install should run
// with, mirroring kv/config.NewDefaultConfig's defaults-struct-literal
// style.
func NewDefaultConfig() *Config {
	return &Config{
		Backend:        "memory",
		DBPath:         "/tmp/caustic",
		RetryBaseDelay: 5 * time.Millisecond,
		RetryMaxDelay:  200 * time.Millisecond,
		Log: log.Config{
			Level: "info",
		},
	}
}

// Load decodes a TOML file at path into a copy of NewDefaultConfig,
// so fields the file omits keep their default value.
func Load(path string) (*Config, error) {
	c := NewDefaultConfig()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.ParseErrorf("config: decode %s: %v", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects an unknown backend or inconsistent retry delays
// rather than letting them run, the same upfront-check kv/config.
// Config.Validate performs.
func (c *Config) Validate() error {
	switch c.Backend {
	case "memory":
	default:
		return errors.InvariantViolationf("config: unknown backend %q", c.Backend)
	}
	if c.RetryBaseDelay <= 0 {
		return errors.InvariantViolationf("config: retry-base-delay must be greater than 0")
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		return errors.InvariantViolationf("config: retry-max-delay must be at least retry-base-delay")
	}
	return nil
}

// SetupLogger initializes the global pingcap/log logger from c.Log, the
// same call scheduler/server/config.Config.SetupLogger makes.
func (c *Config) SetupLogger() error {
	lg, props, err := log.InitLogger(&c.Log, zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return errors.WrapFatal(err)
	}
	log.ReplaceGlobals(lg, props)
	return nil
}
