// Package types defines the envelope and enumeration types shared by the
// chat engine, session delegates, and handlers.
package types

// EngineChannelType identifies one of the three coarse transport lanes a
// session delegate multiplexes. Every inbound or outbound frame travels on
// exactly one channel.
type EngineChannelType int

const (
	// ChannelNone is the zero value and matches no channel.
	ChannelNone EngineChannelType = iota
	// ChannelAudio carries PCM audio frames.
	ChannelAudio
	// ChannelVideo carries framed image data.
	ChannelVideo
	// ChannelText carries UTF-8 text.
	ChannelText
)

// Channels lists the routable channel types in a stable order.
// ChannelNone is intentionally excluded.
var Channels = []EngineChannelType{ChannelAudio, ChannelVideo, ChannelText}

// String returns the lowercase name of the channel type.
func (c EngineChannelType) String() string {
	switch c {
	case ChannelAudio:
		return "audio"
	case ChannelVideo:
		return "video"
	case ChannelText:
		return "text"
	default:
		return "none"
	}
}

// ChatDataType is the fine-grained semantic tag carried by a ChatData
// envelope. Multiple data types map onto the same engine channel: the
// channel decides which delegate queue an item lands on, the data type
// decides which handlers consume it.
type ChatDataType int

const (
	// DataNone is the zero value and matches no data type.
	DataNone ChatDataType = iota
	// DataMicAudio is audio captured from the client microphone.
	DataMicAudio
	// DataCameraVideo is video captured from the client camera.
	DataCameraVideo
	// DataHumanText is text attributed to the human participant.
	DataHumanText
	// DataAvatarAudio is synthesized speech produced for the avatar.
	DataAvatarAudio
	// DataAvatarVideo is rendered avatar video.
	DataAvatarVideo
	// DataAvatarText is text attributed to the avatar.
	DataAvatarText
)

// String returns the snake_case name of the data type.
func (t ChatDataType) String() string {
	switch t {
	case DataMicAudio:
		return "mic_audio"
	case DataCameraVideo:
		return "camera_video"
	case DataHumanText:
		return "human_text"
	case DataAvatarAudio:
		return "avatar_audio"
	case DataAvatarVideo:
		return "avatar_video"
	case DataAvatarText:
		return "avatar_text"
	default:
		return "none"
	}
}

// ChannelType returns the engine channel this data type travels on.
func (t ChatDataType) ChannelType() EngineChannelType {
	switch t {
	case DataMicAudio, DataAvatarAudio:
		return ChannelAudio
	case DataCameraVideo, DataAvatarVideo:
		return ChannelVideo
	case DataHumanText, DataAvatarText:
		return ChannelText
	default:
		return ChannelNone
	}
}
