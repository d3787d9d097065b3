package ecs

import (
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const defaultNodeCapacity = 128

// PidType selects how permanent ids are assigned to new entities.
type PidType uint8

const (
	PidTypeUndefined PidType = iota // Used as the zero value
	PidAsID                         // The pid equals the entity id
	RandomPids                      // A random positive int64, unique within the store
)

func (p PidType) String() string {
	switch p {
	case PidAsID:
		return "pid_as_id"
	case RandomPids:
		return "random"
	case PidTypeUndefined:
		return "undefined"
	default:
		return "undefined"
	}
}

// ParsePidType converts a string to PidType enum.
func ParsePidType(s string) PidType {
	switch strings.ToLower(s) {
	case "pid_as_id":
		return PidAsID
	case "random":
		return RandomPids
	default:
		return PidTypeUndefined
	}
}

// IDPolicy selects whether ids of deleted entities are handed out again.
type IDPolicy uint8

const (
	IDPolicyUndefined IDPolicy = iota // Used as the zero value
	IDPolicyMonotonic                 // Ids are never reused implicitly
	IDPolicyRecycle                   // Deleted ids are reused in FIFO order
)

func (p IDPolicy) String() string {
	switch p {
	case IDPolicyMonotonic:
		return "monotonic"
	case IDPolicyRecycle:
		return "recycle"
	case IDPolicyUndefined:
		return "undefined"
	default:
		return "undefined"
	}
}

// ParseIDPolicy converts a string to IDPolicy enum.
func ParseIDPolicy(s string) IDPolicy {
	switch strings.ToLower(s) {
	case "monotonic":
		return IDPolicyMonotonic
	case "recycle":
		return IDPolicyRecycle
	default:
		return IDPolicyUndefined
	}
}

// storeConfig holds the entity store configuration read from the environment.
type storeConfig struct {
	// PidType is the pid assignment policy ("pid_as_id", "random").
	PidType string `env:"ENTITY_STORE_PID_TYPE" envDefault:"pid_as_id"`

	// IDPolicy is the id reuse policy ("monotonic", "recycle").
	IDPolicy string `env:"ENTITY_STORE_ID_POLICY" envDefault:"monotonic"`

	// NodeCapacity is the initial length of the node table.
	NodeCapacity int `env:"ENTITY_STORE_NODE_CAPACITY" envDefault:"128"`

	// PidSeed seeds the random pid generator. Zero picks a random seed.
	PidSeed uint64 `env:"ENTITY_STORE_PID_SEED" envDefault:"0"`
}

func loadStoreConfig() (storeConfig, error) {
	cfg := storeConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse entity store config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate entity store config")
	}

	return cfg, nil
}

func (cfg *storeConfig) validate() error {
	if ParsePidType(cfg.PidType) == PidTypeUndefined {
		return eris.Errorf("invalid pid type: %s (must be 'pid_as_id' or 'random')", cfg.PidType)
	}
	if ParseIDPolicy(cfg.IDPolicy) == IDPolicyUndefined {
		return eris.Errorf("invalid id policy: %s (must be 'monotonic' or 'recycle')", cfg.IDPolicy)
	}
	if cfg.NodeCapacity <= 0 {
		return eris.Errorf("node capacity must be positive, got %d", cfg.NodeCapacity)
	}
	return nil
}

func (cfg *storeConfig) applyToOptions(opt *Options) {
	opt.PidType = ParsePidType(cfg.PidType)
	opt.IDPolicy = ParseIDPolicy(cfg.IDPolicy)
	opt.NodeCapacity = cfg.NodeCapacity
	opt.PidSeed = cfg.PidSeed
}

// Options configures an EntityStore. Zero fields keep the value from the environment or the default.
type Options struct {
	PidType      PidType
	IDPolicy     IDPolicy
	NodeCapacity int
	PidSeed      uint64
	Logger       *zerolog.Logger // Defaults to a telemetry logger configured from the environment
}

func newDefaultOptions() Options {
	return Options{
		PidType:      PidAsID,
		IDPolicy:     IDPolicyMonotonic,
		NodeCapacity: defaultNodeCapacity,
	}
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *Options) apply(newOpt Options) {
	if newOpt.PidType != PidTypeUndefined {
		opt.PidType = newOpt.PidType
	}
	if newOpt.IDPolicy != IDPolicyUndefined {
		opt.IDPolicy = newOpt.IDPolicy
	}
	if newOpt.NodeCapacity != 0 {
		opt.NodeCapacity = newOpt.NodeCapacity
	}
	if newOpt.PidSeed != 0 {
		opt.PidSeed = newOpt.PidSeed
	}
	if newOpt.Logger != nil {
		opt.Logger = newOpt.Logger
	}
}

// validate checks that all required options are set and valid.
func (opt *Options) validate() error {
	if opt.PidType == PidTypeUndefined {
		return eris.New("pid type must be specified")
	}
	if opt.IDPolicy == IDPolicyUndefined {
		return eris.New("id policy must be specified")
	}
	if opt.NodeCapacity <= 0 {
		return eris.Errorf("node capacity must be positive, got %d", opt.NodeCapacity)
	}
	return nil
}
