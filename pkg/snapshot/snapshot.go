// Package snapshot produces the effective element list of a profile.
//
// When a profile carries no snapshot, a pseudo-snapshot is built by laying
// each differential element over the base element with the same path. The
// merge is shallow: top-level keys of the differential replace those of the
// base, and nested values such as the type list are replaced wholesale. This
// is not the FHIR snapshot generation algorithm; slices and elements the base
// does not know are passed through as declared.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofhir/profiledoc/pkg/registry"
)

// Source tells where the effective elements came from.
type Source int

const (
	// FromSnapshot means the profile's own snapshot was used.
	FromSnapshot Source = iota
	// FromMerge means the differential was merged onto the base snapshot.
	FromMerge
	// FromDifferential means the differential was used alone.
	FromDifferential
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case FromSnapshot:
		return "snapshot"
	case FromMerge:
		return "merged"
	case FromDifferential:
		return "differential"
	}
	return "unknown"
}

// Effective returns the element list to report on. base may be nil.
func Effective(profile, base *registry.StructureDefinition) ([]registry.ElementDefinition, Source, error) {
	if elements := profile.SnapshotElements(); len(elements) > 0 {
		return elements, FromSnapshot, nil
	}

	diff := profile.DifferentialElements()
	baseElements := base.SnapshotElements()
	if len(baseElements) == 0 {
		return diff, FromDifferential, nil
	}

	byPath := make(map[string]*registry.ElementDefinition, len(baseElements))
	for i := range baseElements {
		if _, seen := byPath[baseElements[i].Path]; !seen {
			byPath[baseElements[i].Path] = &baseElements[i]
		}
	}

	result := make([]registry.ElementDefinition, 0, len(diff))
	for i := range diff {
		d := &diff[i]
		b, ok := byPath[d.Path]
		if !ok {
			result = append(result, *d)
			continue
		}
		merged, err := Merge(b, d)
		if err != nil {
			return nil, FromMerge, fmt.Errorf("merging %s: %w", d.Path, err)
		}
		result = append(result, merged)
	}
	return result, FromMerge, nil
}

// Merge overlays the top-level keys of diff onto base.
func Merge(base, diff *registry.ElementDefinition) (registry.ElementDefinition, error) {
	data, err := MergeRaw(base.Raw(), diff.Raw())
	if err != nil {
		return registry.ElementDefinition{}, err
	}
	return registry.ParseElement(data)
}

// MergeRaw overlays the top-level keys of the JSON object diff onto base.
func MergeRaw(base, diff json.RawMessage) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &obj); err != nil {
			return nil, fmt.Errorf("base element: %w", err)
		}
	}
	var over map[string]json.RawMessage
	if err := json.Unmarshal(diff, &over); err != nil {
		return nil, fmt.Errorf("differential element: %w", err)
	}
	for k, v := range over {
		obj[k] = v
	}
	return json.Marshal(obj)
}

// Removed returns the paths of elements declaring max "0", in element order.
func Removed(elements []registry.ElementDefinition) []string {
	var paths []string
	for i := range elements {
		if elements[i].IsRemoved() {
			paths = append(paths, elements[i].Path)
		}
	}
	return paths
}

// IsDescendant reports whether path lies under ancestor, either as a child
// (ancestor.x) or as a named slice (ancestor:x). A path is not its own
// descendant.
func IsDescendant(path, ancestor string) bool {
	if len(path) <= len(ancestor) || !strings.HasPrefix(path, ancestor) {
		return false
	}
	sep := path[len(ancestor)]
	return sep == '.' || sep == ':'
}

// HiddenBy reports whether path is a descendant of any removed path.
func HiddenBy(path string, removed []string) bool {
	for _, r := range removed {
		if IsDescendant(path, r) {
			return true
		}
	}
	return false
}

// Reportable drops the root element of profile.
func Reportable(profile *registry.StructureDefinition, elements []registry.ElementDefinition) []registry.ElementDefinition {
	out := make([]registry.ElementDefinition, 0, len(elements))
	for i := range elements {
		if elements[i].Path == profile.Type {
			continue
		}
		out = append(out, elements[i])
	}
	return out
}

// ByPath indexes elements by path. The first element of a path wins.
func ByPath(elements []registry.ElementDefinition) map[string]*registry.ElementDefinition {
	m := make(map[string]*registry.ElementDefinition, len(elements))
	for i := range elements {
		if _, ok := m[elements[i].Path]; !ok {
			m[elements[i].Path] = &elements[i]
		}
	}
	return m
}
