package databundle

import "errors"

// Schema violations are programming or wiring defects: they are reported as
// errors at construction/bind time and must not be silently tolerated.
var (
	// ErrDefinitionLocked is returned when adding an entry to a locked definition.
	ErrDefinitionLocked = errors.New("data bundle definition is locked")

	// ErrDefinitionUnlocked is returned when constructing a bundle from a
	// definition that has not been locked down yet.
	ErrDefinitionUnlocked = errors.New("data bundle definition is not locked")

	// ErrDuplicateEntry is returned when an entry name collides within a definition.
	ErrDuplicateEntry = errors.New("duplicate entry name in definition")

	// ErrNoEntries is returned when locking or binding a definition with no entries.
	ErrNoEntries = errors.New("definition has no entries")

	// ErrUnknownEntry is returned when binding data to an entry name the
	// definition does not declare.
	ErrUnknownEntry = errors.New("entry not declared in definition")

	// ErrKindMismatch is returned when the bound value's type does not match
	// the entry's declared kind (e.g. a string bound to an audio entry).
	ErrKindMismatch = errors.New("value kind does not match entry kind")

	// ErrShapeMismatch is returned when a tensor's shape violates the entry's
	// declared dimensions.
	ErrShapeMismatch = errors.New("tensor shape does not match entry shape")

	// ErrInvalidTensor is returned when a tensor's payload length does not
	// match its shape.
	ErrInvalidTensor = errors.New("tensor payload does not match its shape")
)
