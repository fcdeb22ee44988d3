package cul

import (
	"fmt"
	"strings"
)

// deviceAddressLen is the length of a remapped device address.
const deviceAddressLen = deviceAddressEnd - houseCodeEnd

// RegistryEntry describes one known device.
type RegistryEntry struct {
	// Address is the remapped 4-digit device address (digits 1-4).
	Address string `json:"address" yaml:"address"`

	// Name is the display name, also used as the topic segment.
	Name string `json:"name" yaml:"name"`

	// DeviceClass is the sensor classification announced in discovery
	// (e.g. "motion", "door", "window").
	DeviceClass string `json:"device_class" yaml:"device_class"`
}

// Registry is the immutable address → device mapping used to filter and
// label decoded telegrams. Build it once with NewRegistry and share it.
//
// Thread Safety: read-only after construction, safe for concurrent use.
type Registry struct {
	entries []RegistryEntry
	byAddr  map[string]RegistryEntry
}

// NewRegistry validates entries and builds a registry. Iteration order of
// Entries matches the order given here.
func NewRegistry(entries []RegistryEntry) (*Registry, error) {
	r := &Registry{
		entries: make([]RegistryEntry, 0, len(entries)),
		byAddr:  make(map[string]RegistryEntry, len(entries)),
	}

	names := make(map[string]bool, len(entries))
	var errs []string

	for i, e := range entries {
		if msg := validateEntry(e); msg != "" {
			errs = append(errs, fmt.Sprintf("entry[%d]: %s", i, msg))
			continue
		}
		if _, dup := r.byAddr[e.Address]; dup {
			errs = append(errs, fmt.Sprintf("entry[%d]: address %q is duplicate", i, e.Address))
			continue
		}
		if names[e.Name] {
			errs = append(errs, fmt.Sprintf("entry[%d]: name %q is duplicate", i, e.Name))
			continue
		}

		names[e.Name] = true
		r.byAddr[e.Address] = e
		r.entries = append(r.entries, e)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRegistry, strings.Join(errs, "; "))
	}

	return r, nil
}

// Lookup returns the entry for a device address. A miss is not an error:
// unknown devices are filtered out by the bridge.
func (r *Registry) Lookup(address string) (RegistryEntry, bool) {
	if r == nil {
		return RegistryEntry{}, false
	}
	e, ok := r.byAddr[address]
	return e, ok
}

// Entries returns a copy of all entries in registration order.
func (r *Registry) Entries() []RegistryEntry {
	if r == nil {
		return nil
	}
	out := make([]RegistryEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// validateEntry returns a description of the first problem, or "".
func validateEntry(e RegistryEntry) string {
	if !ValidDeviceAddress(e.Address) {
		return fmt.Sprintf("address %q must be %d digits in the range 1-4", e.Address, deviceAddressLen)
	}
	if e.Name == "" {
		return "name is required"
	}
	if strings.ContainsAny(e.Name, "/+#") {
		return fmt.Sprintf("name %q must not contain '/', '+' or '#'", e.Name)
	}
	if e.DeviceClass == "" {
		return "device_class is required"
	}
	return ""
}

// ValidDeviceAddress reports whether s is a remapped device address.
func ValidDeviceAddress(s string) bool {
	if len(s) != deviceAddressLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '1' || s[i] > '4' {
			return false
		}
	}
	return true
}
