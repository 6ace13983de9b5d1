package relay

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/xeipuuv/gojsonschema"
)

// twilioSchema accepts mappings carrying Twilio API credentials.
var twilioSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"account_sid": map[string]interface{}{"type": "string", "minLength": 1},
		"auth_token":  map[string]interface{}{"type": "string", "minLength": 1},
	},
	"required": []interface{}{"account_sid", "auth_token"},
}

// TwilioProvider derives TURN credentials for Twilio's global network
// token service from an account SID and auth token.
type TwilioProvider struct{}

// NewTwilioProvider returns the Twilio relay provider.
func NewTwilioProvider() *TwilioProvider { return &TwilioProvider{} }

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) ConfigSchema() gojsonschema.JSONLoader {
	return gojsonschema.NewGoLoader(twilioSchema)
}

func (p *TwilioProvider) Prepare(raw map[string]interface{}) (*webrtc.Configuration, error) {
	sid, _ := raw["account_sid"].(string)
	token, _ := raw["auth_token"].(string)
	if sid == "" || token == "" {
		return nil, fmt.Errorf("twilio relay requires account_sid and auth_token")
	}

	return &webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:global.stun.twilio.com:3478"},
			},
			{
				URLs: []string{
					"turn:global.turn.twilio.com:3478?transport=udp",
					"turn:global.turn.twilio.com:3478?transport=tcp",
					"turn:global.turn.twilio.com:443?transport=tcp",
				},
				Username:   sid,
				Credential: token,
			},
		},
	}, nil
}
