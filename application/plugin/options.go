package plugin

import (
	"log/slog"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
)

// ReregistrationPolicy decides what registering a second closure for the
// same top-level event does.
type ReregistrationPolicy int

const (
	// ReplacePolicy swaps in the new closure. The host registration is kept.
	ReplacePolicy ReregistrationPolicy = iota
	// RejectPolicy fails the second registration with InvalidRegistrationContext.
	RejectPolicy
)

// Option configures a plugin instance.
type Option func(*pluginConfig)

type pluginConfig struct {
	contract *abi.Contract
	logger   *slog.Logger
	level    slog.Level
	policy   ReregistrationPolicy
}

func defaultPluginConfig() pluginConfig {
	return pluginConfig{
		contract: abi.Current(),
		level:    slog.LevelInfo,
		policy:   ReplacePolicy,
	}
}

// WithContract overrides the API contract the plugin checks capabilities
// against. The compiled-in contract is the default; tests use this to
// exercise other versions against the simulated host.
func WithContract(c *abi.Contract) Option {
	return func(cfg *pluginConfig) {
		if c != nil {
			cfg.contract = c
		}
	}
}

// WithLogger sets the logger for SDK diagnostics and Plugin.Logger. The
// default logs to the host output.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *pluginConfig) {
		cfg.logger = l
	}
}

// WithLogLevel sets the level of the default host logger.
func WithLogLevel(level slog.Level) Option {
	return func(cfg *pluginConfig) {
		cfg.level = level
	}
}

// WithReregistrationPolicy sets how repeated top-level registrations behave.
func WithReregistrationPolicy(p ReregistrationPolicy) Option {
	return func(cfg *pluginConfig) {
		cfg.policy = p
	}
}
