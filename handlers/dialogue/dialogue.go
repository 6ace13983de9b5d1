// Package dialogue is a text-in, text-out pipeline stage: it consumes human
// utterances, produces avatar replies, and records both sides into the
// conversation history store.
//
// The built-in reply policy echoes the utterance back; deployments slot a
// model-backed policy in through ReplyFunc.
package dialogue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/NimbusAI/avatarchat/config"
	"github.com/NimbusAI/avatarchat/databundle"
	"github.com/NimbusAI/avatarchat/handler"
	"github.com/NimbusAI/avatarchat/history"
	"github.com/NimbusAI/avatarchat/logger"
	"github.com/NimbusAI/avatarchat/types"
)

// Name is the handler's registration name in configuration.
const Name = "echo_dialogue"

// History roles recorded per message.
const (
	roleHuman  = "human"
	roleAvatar = "avatar"
)

var configSchema = gojsonschema.NewGoLoader(map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"reply_prefix": map[string]interface{}{"type": "string"},
	},
})

var (
	humanTextDef  = databundle.MustLockedDefinition(databundle.NewTextEntry("human_text"))
	avatarTextDef = databundle.MustLockedDefinition(databundle.NewTextEntry("avatar_text"))
)

// ReplyFunc produces the avatar's reply to one human utterance.
type ReplyFunc func(ctx context.Context, sessionID, utterance string) (string, error)

// Handler is the dialogue pipeline stage.
type Handler struct {
	store history.Store
	reply ReplyFunc

	prefix string
}

// New creates a dialogue handler backed by the given history store. A nil
// store disables history recording.
func New(store history.Store) *Handler {
	h := &Handler{store: store}
	h.reply = h.echo
	return h
}

// SetReplyFunc replaces the reply policy. Call before the engine loads the
// handler.
func (h *Handler) SetReplyFunc(f ReplyFunc) { h.reply = f }

func (h *Handler) echo(_ context.Context, _ string, utterance string) (string, error) {
	return h.prefix + utterance, nil
}

// HandlerInfo declares the handler's static capabilities.
func (h *Handler) HandlerInfo() handler.Info {
	return handler.Info{Name: Name, ConfigSchema: configSchema}
}

// Load reads the reply prefix.
func (h *Handler) Load(_ *config.EngineConfig, handlerCfg config.HandlerConfig) error {
	h.prefix = handlerCfg.GetString("reply_prefix", "")
	return nil
}

// CreateContext builds the per-session dialogue state.
func (h *Handler) CreateContext(sc handler.SessionContext, _ config.HandlerConfig) (handler.Context, error) {
	return &dialogueContext{
		BaseContext: handler.BaseContext{ID: sc.SessionID()},
		store:       h.store,
		stamp:       sc.Timestamp,
	}, nil
}

// StartContext is a no-op: the stage is purely reactive.
func (h *Handler) StartContext(_ handler.SessionContext, _ handler.Context) error { return nil }

// HandlerDetail declares the text-in, text-out wiring.
func (h *Handler) HandlerDetail(_ handler.SessionContext, _ handler.Context) handler.Detail {
	return handler.Detail{
		Inputs: map[types.ChatDataType]handler.DataInfo{
			types.DataHumanText: {Type: types.DataHumanText, Definition: humanTextDef},
		},
		Outputs: map[types.ChatDataType]handler.DataInfo{
			types.DataAvatarText: {Type: types.DataAvatarText, Definition: avatarTextDef},
		},
	}
}

// Handle consumes one human utterance: records it, produces the avatar's
// reply, records that too, and submits the reply downstream. The reply
// carries the utterance's speech id so synthesis can correlate the turn.
func (h *Handler) Handle(hc handler.Context, in *types.ChatData, _ map[types.ChatDataType]handler.DataInfo) error {
	dc, ok := hc.(*dialogueContext)
	if !ok {
		return fmt.Errorf("unexpected context type %T", hc)
	}
	if in.Type != types.DataHumanText || in.Data == nil {
		return nil
	}
	utterance := in.Data.MainText()
	if utterance == "" {
		return nil
	}

	ctx := context.Background()
	dc.record(ctx, roleHuman, utterance)

	reply, err := h.reply(ctx, dc.SessionID(), utterance)
	if err != nil {
		return fmt.Errorf("reply policy: %w", err)
	}

	speechID := in.Data.MetaString(types.MetaSpeechID)
	if speechID == "" {
		speechID = uuid.New().String()
	}

	bundle, err := databundle.New(avatarTextDef)
	if err != nil {
		return err
	}
	bundle.AddMeta(types.MetaAvatarTextEnd, true)
	bundle.AddMeta(types.MetaSpeechID, speechID)
	if err := bundle.SetMainData(reply); err != nil {
		return err
	}

	dc.record(ctx, roleAvatar, reply)

	if dc.Submitter == nil {
		return fmt.Errorf("session %s: no submitter attached", dc.SessionID())
	}
	return dc.Submitter.Submit(&types.ChatData{
		Source:    types.SourceInternal,
		Type:      types.DataAvatarText,
		Data:      bundle,
		Timestamp: dc.timestamp(),
	})
}

// DestroyContext drops the session's history.
func (h *Handler) DestroyContext(hc handler.Context) {
	dc, ok := hc.(*dialogueContext)
	if !ok || dc.store == nil {
		return
	}
	if err := dc.store.Clear(context.Background(), dc.SessionID()); err != nil {
		logger.Warn("clear history failed", "session_id", dc.SessionID(), "error", err)
	}
}

// dialogueContext is the per-session dialogue state. It serves the
// administrative history endpoint through the History method.
type dialogueContext struct {
	handler.BaseContext
	store history.Store
	stamp types.TimestampSource
}

// timestamp stamps a produced envelope from the session clock. Every
// envelope leaving the stage carries a fresh pair.
func (c *dialogueContext) timestamp() types.Timestamp {
	if c.stamp == nil {
		return types.Timestamp{}
	}
	return c.stamp()
}

func (c *dialogueContext) record(ctx context.Context, role, content string) {
	if c.store == nil {
		return
	}
	msg := history.Message{Role: role, Content: content, Timestamp: nowMillis()}
	if err := c.store.Append(ctx, c.SessionID(), msg); err != nil {
		logger.Warn("append history failed", "session_id", c.SessionID(), "error", err)
	}
}

// History returns one page of the session's conversation.
func (c *dialogueContext) History(ctx context.Context, page, pageSize int) ([]history.Message, int, error) {
	if c.store == nil {
		return nil, 0, nil
	}
	return c.store.Page(ctx, c.SessionID(), page, pageSize)
}
