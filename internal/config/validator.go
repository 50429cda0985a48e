package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates a loaded configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// structValidator implements Validator using struct tags plus a few
// cross-field checks the tag language cannot express.
type structValidator struct {
	validate *validator.Validate
}

// NewValidator creates a new configuration Validator.
func NewValidator() Validator {
	return &structValidator{validate: validator.New()}
}

func (v *structValidator) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := v.validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				return fmt.Errorf("field %s failed %q validation (value: %v)",
					fe.Namespace(), fe.Tag(), fe.Value())
			}
		}
		return err
	}

	// The stop path must always be faster than a regular command, otherwise
	// an emergency stop can queue behind a stuck movement exchange.
	if cfg.Actuator.StopTimeout >= cfg.Actuator.CommandTimeout {
		return fmt.Errorf("actuator.stop_timeout (%s) must be shorter than actuator.command_timeout (%s)",
			cfg.Actuator.StopTimeout, cfg.Actuator.CommandTimeout)
	}

	if cfg.Actuator.PeerAddress == "" && len(cfg.Actuator.CandidateAddresses) == 0 && cfg.Actuator.Interface == "" {
		return fmt.Errorf("actuator: peer_address, candidate_addresses or interface must be set for peer discovery")
	}

	if cfg.Daemon.SafetyInterval < cfg.Daemon.TickInterval {
		return fmt.Errorf("daemon.safety_interval (%s) must not be shorter than daemon.tick_interval (%s)",
			cfg.Daemon.SafetyInterval, cfg.Daemon.TickInterval)
	}

	return nil
}
