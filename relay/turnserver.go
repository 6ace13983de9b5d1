package relay

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/xeipuuv/gojsonschema"
)

// turnServerSchema accepts mappings describing a self-hosted TURN server.
var turnServerSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"urls": map[string]interface{}{
			"type":     "array",
			"items":    map[string]interface{}{"type": "string", "minLength": 1},
			"minItems": 1,
		},
		"username":   map[string]interface{}{"type": "string", "minLength": 1},
		"credential": map[string]interface{}{"type": "string", "minLength": 1},
	},
	"required": []interface{}{"urls", "username", "credential"},
}

// TurnServerProvider passes through explicit TURN server coordinates,
// typically a coturn deployment operated alongside the service.
type TurnServerProvider struct{}

// NewTurnServerProvider returns the self-hosted TURN relay provider.
func NewTurnServerProvider() *TurnServerProvider { return &TurnServerProvider{} }

func (p *TurnServerProvider) Name() string { return "turn_server" }

func (p *TurnServerProvider) ConfigSchema() gojsonschema.JSONLoader {
	return gojsonschema.NewGoLoader(turnServerSchema)
}

func (p *TurnServerProvider) Prepare(raw map[string]interface{}) (*webrtc.Configuration, error) {
	rawURLs, ok := raw["urls"].([]interface{})
	if !ok || len(rawURLs) == 0 {
		return nil, fmt.Errorf("turn_server relay requires at least one url")
	}
	urls := make([]string, 0, len(rawURLs))
	for _, u := range rawURLs {
		s, ok := u.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("turn_server relay url must be a non-empty string")
		}
		urls = append(urls, s)
	}

	username, _ := raw["username"].(string)
	credential, _ := raw["credential"].(string)
	if username == "" || credential == "" {
		return nil, fmt.Errorf("turn_server relay requires username and credential")
	}

	return &webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs:       urls,
				Username:   username,
				Credential: credential,
			},
		},
	}, nil
}
