package databundle

import "fmt"

// Definition is an immutable, named schema for bundles: an ordered set of
// entry descriptors. A definition starts mutable, entries are added, and
// Lockdown freezes it; only locked definitions can back a bundle.
type Definition struct {
	entries []Entry
	byName  map[string]int
	locked  bool
}

// NewDefinition creates an empty, unlocked definition.
func NewDefinition() *Definition {
	return &Definition{byName: make(map[string]int)}
}

// AddEntry appends an entry descriptor. It fails if the definition is
// already locked or the entry name collides with an existing one.
func (d *Definition) AddEntry(entry Entry) error {
	if d.locked {
		return fmt.Errorf("add entry %q: %w", entry.Name, ErrDefinitionLocked)
	}
	if entry.Name == "" {
		return fmt.Errorf("add entry: %w: empty name", ErrUnknownEntry)
	}
	if _, exists := d.byName[entry.Name]; exists {
		return fmt.Errorf("add entry %q: %w", entry.Name, ErrDuplicateEntry)
	}
	d.byName[entry.Name] = len(d.entries)
	d.entries = append(d.entries, entry)
	return nil
}

// Lockdown freezes the definition. Subsequent AddEntry calls fail. Locking
// an empty definition fails.
func (d *Definition) Lockdown() error {
	if len(d.entries) == 0 {
		return ErrNoEntries
	}
	d.locked = true
	return nil
}

// Locked reports whether the definition has been frozen.
func (d *Definition) Locked() bool { return d.locked }

// MainEntry returns the first (primary) entry of the definition.
func (d *Definition) MainEntry() (Entry, bool) {
	if len(d.entries) == 0 {
		return Entry{}, false
	}
	return d.entries[0], true
}

// Entry returns the entry with the given name.
func (d *Definition) Entry(name string) (Entry, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Entry{}, false
	}
	return d.entries[i], true
}

// Entries returns the entries in declaration order. The returned slice must
// not be mutated.
func (d *Definition) Entries() []Entry { return d.entries }

// MustLockedDefinition builds and locks a single-entry definition. It panics
// on schema errors, which are programming defects; intended for static
// channel definitions assembled at handler load time.
func MustLockedDefinition(entries ...Entry) *Definition {
	def := NewDefinition()
	for _, e := range entries {
		if err := def.AddEntry(e); err != nil {
			panic(err)
		}
	}
	if err := def.Lockdown(); err != nil {
		panic(err)
	}
	return def
}
