package relay

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"

	"github.com/NimbusAI/avatarchat/logger"
)

func twilioConfig() map[string]interface{} {
	return map[string]interface{}{
		"account_sid": "AC0000",
		"auth_token":  "secret",
	}
}

func turnServerConfig() map[string]interface{} {
	return map[string]interface{}{
		"urls":       []interface{}{"turn:turn.example.com:3478"},
		"username":   "user",
		"credential": "pass",
	}
}

func TestNegotiateNamedProvider(t *testing.T) {
	r := DefaultRegistry()

	raw := turnServerConfig()
	raw["turn_provider"] = "turn_server"

	cfg, name := r.Negotiate(raw)
	require.NotNil(t, cfg)
	assert.Equal(t, "turn_server", name)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"turn:turn.example.com:3478"}, cfg.ICEServers[0].URLs)
	assert.Equal(t, "user", cfg.ICEServers[0].Username)
}

func TestNegotiateUnregisteredNameFallsThrough(t *testing.T) {
	r := DefaultRegistry()

	// Provider name nobody registered plus a mapping no schema accepts:
	// the call must degrade to "no relay", never error.
	cfg, name := r.Negotiate(map[string]interface{}{
		"turn_provider": "acme",
		"api_key":       "k",
	})
	assert.Nil(t, cfg)
	assert.Empty(t, name)
}

func TestNegotiateUnregisteredNameStillProbes(t *testing.T) {
	r := DefaultRegistry()

	// Unknown name, but the fields satisfy the twilio schema, so probing
	// finds a match anyway.
	raw := twilioConfig()
	raw["turn_provider"] = "acme"

	cfg, name := r.Negotiate(raw)
	require.NotNil(t, cfg)
	assert.Equal(t, "twilio", name)
}

func TestNegotiateNamedProviderInvalidConfigDowngrades(t *testing.T) {
	r := DefaultRegistry()

	// Names twilio but carries turn_server fields: named validation fails,
	// probing selects turn_server.
	raw := turnServerConfig()
	raw["turn_provider"] = "twilio"

	cfg, name := r.Negotiate(raw)
	require.NotNil(t, cfg)
	assert.Equal(t, "turn_server", name)
}

func TestNegotiateProbeOrderIsRegistrationOrder(t *testing.T) {
	// Both stub schemas accept everything; the earlier registration wins.
	first := &stubProvider{name: "first"}
	second := &stubProvider{name: "second"}

	r, err := NewRegistry(first, second)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, name := r.Negotiate(map[string]interface{}{"anything": true})
		assert.Equal(t, "first", name)
	}
}

func TestNegotiateNilAndEmptyConfig(t *testing.T) {
	r := DefaultRegistry()

	cfg, name := r.Negotiate(nil)
	assert.Nil(t, cfg)
	assert.Empty(t, name)

	cfg, name = r.Negotiate(map[string]interface{}{})
	assert.Nil(t, cfg)
	assert.Empty(t, name)
}

func TestNegotiatePrepareFailureDegrades(t *testing.T) {
	failing := &stubProvider{name: "failing", prepareErr: fmt.Errorf("boom")}
	r, err := NewRegistry(failing)
	require.NoError(t, err)

	cfg, name := r.Negotiate(map[string]interface{}{"anything": true})
	assert.Nil(t, cfg)
	assert.Empty(t, name)
}

func TestNegotiateRedactsCredentialsInLogs(t *testing.T) {
	var buf bytes.Buffer
	old := logger.DefaultLogger
	logger.DefaultLogger = slog.New(slog.NewTextHandler(&buf, nil))
	defer func() { logger.DefaultLogger = old }()

	failing := &stubProvider{name: "failing",
		prepareErr: fmt.Errorf("dial turn: credential=hunter2 rejected")}
	r, err := NewRegistry(failing)
	require.NoError(t, err)

	cfg, name := r.Negotiate(map[string]interface{}{"anything": true})
	assert.Nil(t, cfg)
	assert.Empty(t, name)

	logged := buf.String()
	assert.Contains(t, logged, "[REDACTED]")
	assert.NotContains(t, logged, "hunter2")
}

func TestNewRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(&stubProvider{name: "dup"}, &stubProvider{name: "dup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestTwilioPrepare(t *testing.T) {
	cfg, err := NewTwilioProvider().Prepare(twilioConfig())
	require.NoError(t, err)
	require.Len(t, cfg.ICEServers, 2)
	assert.Equal(t, "AC0000", cfg.ICEServers[1].Username)
	assert.Equal(t, "secret", cfg.ICEServers[1].Credential)
	assert.Len(t, cfg.ICEServers[1].URLs, 3)
}

func TestTurnServerPrepareRejectsBadURLs(t *testing.T) {
	raw := turnServerConfig()
	raw["urls"] = []interface{}{""}

	_, err := NewTurnServerProvider().Prepare(raw)
	require.Error(t, err)
}

type stubProvider struct {
	name       string
	prepareErr error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) ConfigSchema() gojsonschema.JSONLoader {
	return gojsonschema.NewGoLoader(map[string]interface{}{"type": "object"})
}

func (s *stubProvider) Prepare(raw map[string]interface{}) (*webrtc.Configuration, error) {
	if s.prepareErr != nil {
		return nil, s.prepareErr
	}
	return &webrtc.Configuration{}, nil
}
