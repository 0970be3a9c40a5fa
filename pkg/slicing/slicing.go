// Package slicing detects slices declared by a profile and describes slicing
// rules for display.
package slicing

import (
	"sort"
	"strings"

	"github.com/gofhir/profiledoc/pkg/registry"
)

// Labeler maps an identifier system to a fixed slice label.
type Labeler interface {
	SliceLabel(system string) (string, bool)
}

// Slice is one named sub-partition of a repeating element.
type Slice struct {
	Path    string // full slice path, e.g. Patient.identifier:ENH
	Element registry.ElementDefinition
}

// Name returns the slice name.
func (s Slice) Name() string {
	return Label(s.Path)
}

// Label returns the text after the last colon of path, or "".
func Label(path string) string {
	if i := strings.LastIndex(path, ":"); i >= 0 {
		return path[i+1:]
	}
	return ""
}

// IsSlice reports whether ed is a slice: its path or id names one, it has a
// sliceName, or it is an identifier whose pattern system is a known OID.
func IsSlice(ed *registry.ElementDefinition, oids Labeler) bool {
	if strings.Contains(ed.Path, ":") || ed.SliceName != "" {
		return true
	}
	_, ok := OIDLabel(ed, oids)
	return ok
}

// OIDLabel returns the slice label of an identifier element whose
// patternUri or patternIdentifier.system contains a configured OID.
func OIDLabel(ed *registry.ElementDefinition, oids Labeler) (string, bool) {
	if oids == nil || !isIdentifierPath(ed.Path) {
		return "", false
	}
	if ed.PatternIdentifier != nil {
		if label, ok := oids.SliceLabel(ed.PatternIdentifier.System); ok {
			return label, true
		}
	}
	return oids.SliceLabel(ed.PatternURI)
}

func isIdentifierPath(path string) bool {
	for _, seg := range strings.Split(path, ".") {
		if name, _, _ := strings.Cut(seg, ":"); name == "identifier" {
			return true
		}
	}
	return false
}

// isDirectSlice reports whether p is path:name with no child segment after
// the name.
func isDirectSlice(p, path string) bool {
	rest, ok := strings.CutPrefix(p, path+":")
	return ok && rest != "" && !strings.Contains(rest, ".")
}

// Find returns the slices of path, sorted by full slice path. The
// differential is searched first; the snapshot only when the differential
// declares none.
func Find(profile *registry.StructureDefinition, path string, oids Labeler) []Slice {
	seen := make(map[string]bool)
	var slices []Slice
	add := func(p string, ed registry.ElementDefinition) {
		if !seen[p] {
			seen[p] = true
			slices = append(slices, Slice{Path: p, Element: ed})
		}
	}

	for _, ed := range profile.DifferentialElements() {
		switch {
		case isDirectSlice(ed.Path, path):
			add(ed.Path, ed)
		case ed.Path == path && ed.SliceName != "":
			add(path+":"+ed.SliceName, ed)
		case ed.Path == path:
			if label, ok := OIDLabel(&ed, oids); ok {
				add(path+":"+label, ed)
			}
		}
	}

	if len(slices) == 0 {
		for _, ed := range profile.SnapshotElements() {
			switch {
			case isDirectSlice(ed.Path, path):
				add(ed.Path, ed)
			case ed.Path == path && ed.SliceName != "":
				add(path+":"+ed.SliceName, ed)
			}
		}
	}

	Sort(slices)
	return slices
}

// Sort orders slices lexicographically by full slice path.
func Sort(slices []Slice) {
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].Path < slices[j].Path
	})
}

// Describe renders slicing rules as "name (type on path, ..., rules, ordered)".
func Describe(s *registry.Slicing) string {
	if s == nil {
		return ""
	}

	parts := make([]string, 0, len(s.Discriminator)+2)
	for _, d := range s.Discriminator {
		parts = append(parts, d.Type+" on "+d.Path)
	}
	if s.Rules != "" {
		parts = append(parts, s.Rules)
	}
	if s.Ordered {
		parts = append(parts, "ordered")
	} else {
		parts = append(parts, "unordered")
	}

	return strings.TrimSpace(s.Name + " (" + strings.Join(parts, ", ") + ")")
}
