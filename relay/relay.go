// Package relay resolves which NAT-traversal (TURN/STUN) backend
// configuration to hand to the transport layer for a session.
//
// Providers register with an explicitly constructed Registry; negotiation
// validates a raw configuration mapping against each provider's JSON schema
// and selects the first match. The registry is read-only after process
// start.
package relay

import (
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/xeipuuv/gojsonschema"

	"github.com/NimbusAI/avatarchat/logger"
	"github.com/NimbusAI/avatarchat/metrics/prometheus"
)

// providerKey is the discriminator key naming a provider in raw relay
// configuration mappings.
const providerKey = "turn_provider"

// Provider supplies one relay backend: a schema its configuration must
// satisfy and the translation into an RTC configuration.
type Provider interface {
	// Name is the registration name matched against the turn_provider key.
	Name() string

	// ConfigSchema returns the JSON schema a raw mapping must satisfy for
	// this provider to accept it. Schemas should require the provider's
	// distinctive fields so probing stays unambiguous.
	ConfigSchema() gojsonschema.JSONLoader

	// Prepare translates an accepted raw mapping into the RTC configuration
	// handed to transport setup.
	Prepare(raw map[string]interface{}) (*webrtc.Configuration, error)
}

// Registry holds relay providers in registration order. Construct it once
// at startup and inject it where negotiation happens; it must not be
// mutated afterwards.
type Registry struct {
	providers []Provider
	byName    map[string]Provider
}

// NewRegistry creates a registry with the given providers, preserving their
// order for fallback probing.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{byName: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if _, dup := r.byName[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate relay provider: %s", p.Name())
		}
		r.byName[p.Name()] = p
		r.providers = append(r.providers, p)
	}
	return r, nil
}

// DefaultRegistry returns a registry with the built-in providers in their
// conventional order: twilio, then turn_server.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(NewTwilioProvider(), NewTurnServerProvider())
	if err != nil {
		panic(err) // built-in names never collide
	}
	return r
}

// Negotiate resolves a raw configuration mapping to an RTC configuration.
//
// If the mapping names a registered provider via turn_provider, that
// provider's schema is tried first; a validation failure downgrades to
// probing, never fails the call. Probing validates the mapping against
// every provider in registration order and selects the first match — when
// two schemas both accept a mapping, the earlier registration silently
// wins. A mapping no provider accepts yields (nil, ""): direct connection,
// no relay, not an error.
func (r *Registry) Negotiate(raw map[string]interface{}) (*webrtc.Configuration, string) {
	if raw == nil {
		prometheus.RecordRelaySelection("none")
		return nil, ""
	}

	var selected Provider
	if name, ok := raw[providerKey].(string); ok && name != "" {
		if p, registered := r.byName[name]; registered {
			if ok, detail := validates(p, raw); ok {
				selected = p
			} else {
				// Schema errors can quote config values; credentials must
				// not reach the logs.
				logger.Warn("named relay provider rejected configuration, falling back to probing",
					"provider", name, "detail", logger.RedactCredentials(detail))
			}
		} else {
			logger.Warn("relay provider not supported, falling back to probing",
				"provider", name)
		}
	}

	if selected == nil {
		for _, p := range r.providers {
			if ok, _ := validates(p, raw); ok {
				selected = p
				break
			}
		}
	}

	if selected == nil {
		logger.Info("no relay provider accepted the configuration; STUN/TURN disabled, " +
			"connections across networks may fail")
		prometheus.RecordRelaySelection("none")
		return nil, ""
	}

	cfg, err := selected.Prepare(raw)
	if err != nil {
		// Preparation failures are recoverable: the session runs without a
		// relay rather than crashing.
		logger.Warn("relay provider failed to prepare configuration",
			"provider", selected.Name(), "error", logger.RedactCredentials(err.Error()))
		prometheus.RecordRelaySelection("none")
		return nil, ""
	}

	logger.RelaySelected(selected.Name())
	prometheus.RecordRelaySelection(selected.Name())
	return cfg, selected.Name()
}

// validates checks a raw mapping against the provider's schema. On a
// mismatch the second return carries the validation detail for logging;
// callers redact it before it leaves the process.
func validates(p Provider, raw map[string]interface{}) (bool, string) {
	result, err := gojsonschema.Validate(p.ConfigSchema(), gojsonschema.NewGoLoader(raw))
	if err != nil {
		logger.Debug("relay schema validation errored", "provider", p.Name(), "error", err)
		return false, err.Error()
	}
	if result.Valid() {
		return true, ""
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.String())
	}
	return false, strings.Join(msgs, "; ")
}
