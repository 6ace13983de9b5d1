package types

// Well-known DataBundle metadata keys stamped by the routing layer.
const (
	// MetaHumanTextEnd marks the end of one human utterance.
	MetaHumanTextEnd = "human_text_end"

	// MetaAvatarTextEnd marks the end of one avatar utterance.
	MetaAvatarTextEnd = "avatar_text_end"

	// MetaSpeechID correlates all items belonging to one utterance.
	MetaSpeechID = "speech_id"
)
