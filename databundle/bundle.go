package databundle

import "fmt"

// DataBundle is one concrete payload instance bound to a locked definition.
// It holds one primary data value per entry plus a map of out-of-band
// metadata. Bundles wrap the caller's data references without copying;
// mutating a bound buffer afterwards is undefined and must be avoided.
type DataBundle struct {
	def  *Definition
	data map[string]interface{}
	meta map[string]interface{}
}

// New creates a bundle bound to the given definition. The definition must
// be locked; constructing a bundle from an unlocked definition is a wiring
// defect and fails.
func New(def *Definition) (*DataBundle, error) {
	if def == nil || !def.Locked() {
		return nil, ErrDefinitionUnlocked
	}
	return &DataBundle{
		def:  def,
		data: make(map[string]interface{}),
		meta: make(map[string]interface{}),
	}, nil
}

// Definition returns the definition the bundle is bound to.
func (b *DataBundle) Definition() *Definition { return b.def }

// SetMainData binds value to the definition's primary entry. The value must
// match the entry's declared kind: *Tensor for audio and framed entries,
// string for text entries.
func (b *DataBundle) SetMainData(value interface{}) error {
	main, ok := b.def.MainEntry()
	if !ok {
		return ErrNoEntries
	}
	return b.SetData(main.Name, value)
}

// SetData binds value to the named entry, checking kind and shape.
func (b *DataBundle) SetData(name string, value interface{}) error {
	entry, ok := b.def.Entry(name)
	if !ok {
		return fmt.Errorf("set %q: %w", name, ErrUnknownEntry)
	}
	switch entry.Kind {
	case KindText:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("set %q: %w: text entry wants string, got %T", name, ErrKindMismatch, value)
		}
	case KindAudio, KindFramed:
		t, ok := value.(*Tensor)
		if !ok {
			return fmt.Errorf("set %q: %w: %s entry wants *Tensor, got %T", name, ErrKindMismatch, entry.Kind, value)
		}
		if !entry.matchShape(t.Shape()) {
			return fmt.Errorf("set %q: %w: shape %v does not satisfy %d declared dims",
				name, ErrShapeMismatch, t.Shape(), len(entry.Shape))
		}
	default:
		return fmt.Errorf("set %q: %w", name, ErrKindMismatch)
	}
	b.data[name] = value
	return nil
}

// Data returns the value bound to the named entry.
func (b *DataBundle) Data(name string) (interface{}, bool) {
	v, ok := b.data[name]
	return v, ok
}

// MainData returns the value bound to the primary entry.
func (b *DataBundle) MainData() (interface{}, bool) {
	main, ok := b.def.MainEntry()
	if !ok {
		return nil, false
	}
	return b.Data(main.Name)
}

// MainTensor returns the primary entry's value as a tensor, or nil when the
// entry is unbound or not tensor-backed.
func (b *DataBundle) MainTensor() *Tensor {
	v, ok := b.MainData()
	if !ok {
		return nil
	}
	t, _ := v.(*Tensor)
	return t
}

// MainText returns the primary entry's value as text, or "" when the entry
// is unbound or not text.
func (b *DataBundle) MainText() string {
	v, ok := b.MainData()
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// AddMeta attaches an out-of-band metadata value. Re-adding a key replaces
// the previous value.
func (b *DataBundle) AddMeta(key string, value interface{}) {
	b.meta[key] = value
}

// GetMeta retrieves a metadata value.
func (b *DataBundle) GetMeta(key string) (interface{}, bool) {
	v, ok := b.meta[key]
	return v, ok
}

// MetaBool returns a boolean metadata value, false when absent or untyped.
func (b *DataBundle) MetaBool(key string) bool {
	v, ok := b.meta[key]
	if !ok {
		return false
	}
	bv, _ := v.(bool)
	return bv
}

// MetaString returns a string metadata value, "" when absent or untyped.
func (b *DataBundle) MetaString(key string) string {
	v, ok := b.meta[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
