package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
service:
  port: 9000
engine:
  handlers:
    - name: rtc_client
      config:
        connection_ttl: 600
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Service.Host)
	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, 16000, cfg.Engine.Connection.InputSampleRate)
	assert.Equal(t, 24000, cfg.Engine.Connection.OutputSampleRate)
	assert.Equal(t, 480, cfg.Engine.Connection.OutputFrameSize)
	assert.Equal(t, "mono", cfg.Engine.Connection.ChannelLayout)
	assert.Equal(t, 15*time.Minute, cfg.Engine.Connection.TTL())
	assert.Equal(t, 10, cfg.Engine.Connection.ConcurrentLimit)

	require.Len(t, cfg.Engine.Handlers, 1)
	assert.Equal(t, "rtc_client", cfg.Engine.Handlers[0].Name)
	assert.Equal(t, 600, cfg.Engine.Handlers[0].Config.GetInt("connection_ttl", 0))
}

func TestParse_TurnConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
engine:
  turn_config:
    turn_provider: turn_server
    urls:
      - turn:relay.example.com:3478
    username: demo
    credential: secret
`))
	require.NoError(t, err)

	assert.Equal(t, "turn_server", cfg.Engine.TurnConfig["turn_provider"])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"stereo layout", "engine:\n  connection:\n    channel_layout: stereo\n"},
		{"tls half configured", "service:\n  cert_file: server.crt\n"},
		{"duplicate handlers", "engine:\n  handlers:\n    - name: a\n    - name: a\n"},
		{"unnamed handler", "engine:\n  handlers:\n    - config: {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestHandlerConfig_Getters(t *testing.T) {
	cfg := HandlerConfig{
		"name":    "rtc",
		"ttl":     900,
		"ratio":   1.5,
		"enabled": true,
		"nested":  map[string]interface{}{"k": "v"},
	}

	assert.Equal(t, "rtc", cfg.GetString("name", ""))
	assert.Equal(t, "fallback", cfg.GetString("missing", "fallback"))
	assert.Equal(t, 900, cfg.GetInt("ttl", 0))
	assert.Equal(t, 1, cfg.GetInt("ratio", 0)) // float64 truncates
	assert.Equal(t, 7, cfg.GetInt("missing", 7))
	assert.True(t, cfg.GetBool("enabled", false))
	assert.Equal(t, map[string]interface{}{"k": "v"}, cfg.GetMap("nested"))
	assert.Nil(t, cfg.GetMap("name"))
}
