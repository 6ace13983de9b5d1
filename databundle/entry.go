// Package databundle provides the typed, schema-bound payload container the
// chat engine moves between handlers.
//
// A DataBundleDefinition is an ordered, named collection of entry descriptors
// that is locked before use; a DataBundle is one concrete payload bound to a
// locked definition. Locking keeps every handler in a session on the same
// contract: once peers have seen a definition it can never drift.
package databundle

// EntryKind is the semantic kind of a bundle entry.
type EntryKind int

const (
	// KindNone is the zero value.
	KindNone EntryKind = iota
	// KindAudio is a PCM audio entry: channel count plus sample rate.
	KindAudio
	// KindFramed is a framed (video/image) entry with an explicit shape.
	KindFramed
	// KindText is a plain text entry with no shape.
	KindText
)

// String returns the lowercase name of the kind.
func (k EntryKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindFramed:
		return "framed"
	case KindText:
		return "text"
	default:
		return "none"
	}
}

// Dim is one dimension of an entry shape: either a fixed size or variable,
// resolved when data is bound rather than when the definition is built.
type Dim struct {
	size     int
	variable bool
}

// Fixed declares a dimension of exactly n elements.
func Fixed(n int) Dim { return Dim{size: n} }

// Variable declares a dimension whose size is resolved at data-bind time.
func Variable() Dim { return Dim{variable: true} }

// IsVariable reports whether the dimension is resolved at bind time.
func (d Dim) IsVariable() bool { return d.variable }

// Size returns the fixed size, or 0 for variable dimensions.
func (d Dim) Size() int {
	if d.variable {
		return 0
	}
	return d.size
}

// Entry describes one named slot of a bundle definition: its kind, shape and
// media parameters. Entries are value types; constructing them through the
// New*Entry helpers keeps kind and shape consistent.
type Entry struct {
	// Name is the logical name, unique within a definition.
	Name string

	// Kind is the semantic kind of the entry.
	Kind EntryKind

	// Shape declares the expected tensor dimensions for audio and framed
	// entries. Text entries have no shape.
	Shape []Dim

	// Channels is the audio channel count (audio entries).
	Channels int

	// SampleRate is the audio sample rate in Hz (audio entries).
	SampleRate int

	// ChannelDim is the index of the color-channel dimension (framed entries).
	ChannelDim int

	// FrameRate is the nominal frame rate in FPS (framed entries).
	FrameRate int
}

// NewAudioEntry declares a PCM audio entry. The bound tensor carries one
// leading channel dimension and a variable sample dimension.
func NewAudioEntry(name string, channels, sampleRate int) Entry {
	return Entry{
		Name:       name,
		Kind:       KindAudio,
		Shape:      []Dim{Fixed(channels), Variable()},
		Channels:   channels,
		SampleRate: sampleRate,
	}
}

// NewFramedEntry declares a framed (video/image) entry with an explicit
// per-dimension shape, the index of the channel-depth dimension, and a
// nominal frame rate.
func NewFramedEntry(name string, shape []Dim, channelDim, frameRate int) Entry {
	return Entry{
		Name:       name,
		Kind:       KindFramed,
		Shape:      append([]Dim(nil), shape...),
		ChannelDim: channelDim,
		FrameRate:  frameRate,
	}
}

// NewTextEntry declares a text entry.
func NewTextEntry(name string) Entry {
	return Entry{Name: name, Kind: KindText}
}

// matchShape checks a concrete tensor shape against the declared dims.
// Variable dims accept any size; fixed dims must match exactly.
func (e Entry) matchShape(shape []int) bool {
	if len(shape) != len(e.Shape) {
		return false
	}
	for i, d := range e.Shape {
		if d.IsVariable() {
			continue
		}
		if shape[i] != d.Size() {
			return false
		}
	}
	return true
}
