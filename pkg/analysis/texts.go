package analysis

import (
	"sort"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/gofhir/profiledoc/pkg/config"
	"github.com/gofhir/profiledoc/pkg/element"
	"github.com/gofhir/profiledoc/pkg/registry"
	"github.com/gofhir/profiledoc/pkg/slicing"
)

// TextProperties are the element texts compared by the text report.
var TextProperties = []string{"short", "definition", "comment"}

// PropertyBinding is the property name of binding rows.
const PropertyBinding = "binding"

// TextRow is one property of an element.
type TextRow struct {
	Property string
	Value    string
	Base     string

	// Emphasis is set when Value overrides the base text. Slice texts are
	// always emphasised.
	Emphasis bool

	// Binding is set on binding rows only.
	Binding *registry.Binding
}

// Label returns the capitalised property name.
func (r TextRow) Label() string {
	return strcase.ToCamel(r.Property)
}

// TextGroup holds the rows of one element or slice.
type TextGroup struct {
	Path    string
	Element string
	Type    string
	Slice   bool
	Rows    []TextRow
}

// TextReport compares the element texts of a profile with its base.
type TextReport struct {
	Name        string
	Base        string
	Description string
	Purpose     string
	Groups      []TextGroup
}

// BuildTextReport builds the text comparison of profile against base. base
// may be nil.
func BuildTextReport(profile, base *registry.StructureDefinition, cfg *config.Config) *TextReport {
	if cfg == nil {
		cfg = config.New()
	}

	report := &TextReport{
		Name:        profile.Name,
		Base:        profile.BaseName(),
		Description: profile.Description,
		Purpose:     profile.Purpose,
	}

	baseElements := make(map[string][]registry.ElementDefinition)
	for _, ed := range base.SnapshotElements() {
		if ed.Path != "" {
			baseElements[ed.Path] = append(baseElements[ed.Path], ed)
		}
	}
	baseText := func(path, prop string) string {
		for i := range baseElements[path] {
			if v := baseElements[path][i].Text(prop); v != "" {
				return v
			}
		}
		return ""
	}

	processed := make(map[string]bool)
	for _, path := range allPaths(profile, base) {
		if processed[path] || path == profile.Type {
			continue
		}

		var baseElem *registry.ElementDefinition
		if list := baseElements[path]; len(list) > 0 {
			baseElem = &list[0]
		}
		profileElem := profileElement(profile, path)

		elementName := strings.TrimPrefix(path, profile.Type+".")
		slices := slicing.Find(profile, path, cfg)
		if showText(profile, path, baseText, slices) {
			report.Groups = append(report.Groups, elementGroup(path, elementName, profileElem, baseElem, baseText))
		}
		for _, s := range slices {
			report.Groups = append(report.Groups, sliceGroup(s, elementName))
			processed[s.Path] = true
		}
		processed[path] = true
	}
	return report
}

func elementGroup(path, name string, profileElem, baseElem *registry.ElementDefinition, baseText func(path, prop string) string) TextGroup {
	group := TextGroup{Path: path, Element: name}
	typed := profileElem
	if typed == nil || len(typed.Type) == 0 {
		typed = baseElem
	}
	if typed != nil {
		group.Type = element.TypeCode(typed.FirstTypeCode())
	}

	for _, prop := range TextProperties {
		baseValue := baseText(path, prop)
		value := baseValue
		if profileElem != nil && strings.TrimSpace(profileElem.Text(prop)) != "" {
			value = profileElem.Text(prop)
		}
		group.Rows = append(group.Rows, TextRow{
			Property: prop,
			Value:    value,
			Base:     baseValue,
			Emphasis: value != "" && value != baseValue,
		})
	}

	var binding *registry.Binding
	if profileElem != nil && profileElem.Binding != nil {
		binding = profileElem.Binding
	} else if baseElem != nil {
		binding = baseElem.Binding
	}
	if binding != nil {
		group.Rows = append(group.Rows, TextRow{Property: PropertyBinding, Binding: binding})
	}
	return group
}

// sliceGroup holds the texts of a slice. They are never compared to a base.
func sliceGroup(s slicing.Slice, parent string) TextGroup {
	group := TextGroup{
		Path:    s.Path,
		Element: parent + ":" + s.Name(),
		Type:    element.TypeCode(s.Element.FirstTypeCode()),
		Slice:   true,
	}
	for _, prop := range TextProperties {
		value := s.Element.Text(prop)
		group.Rows = append(group.Rows, TextRow{Property: prop, Value: value, Emphasis: value != ""})
	}
	if s.Element.Binding != nil {
		group.Rows = append(group.Rows, TextRow{Property: PropertyBinding, Binding: s.Element.Binding})
	}
	return group
}

// allPaths returns the sorted union of base, snapshot and differential paths.
func allPaths(profile, base *registry.StructureDefinition) []string {
	set := make(map[string]bool)
	for _, list := range [][]registry.ElementDefinition{
		base.SnapshotElements(),
		profile.SnapshotElements(),
		profile.DifferentialElements(),
	} {
		for i := range list {
			if list[i].Path != "" {
				set[list[i].Path] = true
			}
		}
	}
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// profileElement returns the element whose texts represent path: the first
// differential element with exactly that path, else the snapshot one. An
// element that only declares slicing does not count.
func profileElement(profile *registry.StructureDefinition, path string) *registry.ElementDefinition {
	elems := pathElements(profile, path)
	if len(elems) == 0 {
		return nil
	}
	ed := &elems[0]
	if ed.Slicing != nil && !hasText(ed) {
		return nil
	}
	return ed
}

// pathElements returns the unsliced elements with path, from the differential
// or, when it has none, from the snapshot.
func pathElements(profile *registry.StructureDefinition, path string) []registry.ElementDefinition {
	if strings.Contains(path, ":") {
		return nil
	}
	var out []registry.ElementDefinition
	for _, ed := range profile.DifferentialElements() {
		if ed.Path == path {
			out = append(out, ed)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, ed := range profile.SnapshotElements() {
		if ed.Path == path {
			out = append(out, ed)
		}
	}
	return out
}

func hasText(ed *registry.ElementDefinition) bool {
	for _, prop := range TextProperties {
		if strings.TrimSpace(ed.Text(prop)) != "" {
			return true
		}
	}
	return false
}

// showText decides whether path gets a row group of its own. Direct
// children of the resource always do. Otherwise a path with profile elements
// is shown when one of them overrides a text or the base has text, and
// hidden in favour of its slices when there are any. Remaining paths are
// shown as grouping rows when the differential changes something below them.
func showText(profile *registry.StructureDefinition, path string, baseText func(path, prop string) string, slices []slicing.Slice) bool {
	if strings.HasPrefix(path, profile.Type+".") && strings.Count(path, ".") == 1 {
		return true
	}

	if elems := pathElements(profile, path); len(elems) > 0 {
		for i := range elems {
			if hasText(&elems[i]) {
				return true
			}
		}
		for _, prop := range TextProperties {
			if strings.TrimSpace(baseText(path, prop)) != "" {
				return true
			}
		}
		if len(slices) > 0 {
			return false
		}
	}

	for _, ed := range profile.DifferentialElements() {
		if strings.HasPrefix(ed.Path, path+".") {
			return true
		}
	}
	return false
}
