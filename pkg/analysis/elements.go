// Package analysis builds the report models printed by the render package.
//
// Every model is derived from a profile and, optionally, its base resource.
// A nil base is accepted everywhere: comparisons against the base are then
// simply left empty.
package analysis

import (
	"sort"
	"strings"

	"github.com/gofhir/profiledoc/pkg/cardinality"
	"github.com/gofhir/profiledoc/pkg/config"
	"github.com/gofhir/profiledoc/pkg/element"
	"github.com/gofhir/profiledoc/pkg/registry"
	"github.com/gofhir/profiledoc/pkg/slicing"
	"github.com/gofhir/profiledoc/pkg/snapshot"
)

// Row is the display record of one element.
type Row struct {
	Path       string // full element path, with :sliceName for slices
	Element    string // path relative to the resource, abridged when long
	Type       string
	Profile    cardinality.Cardinality
	Base       cardinality.Cardinality
	HasBase    bool
	Slicing    string
	Binding    string
	Attributes string
}

// Overridden reports whether the profile cardinality differs from the base.
func (r Row) Overridden() bool {
	return r.HasBase && !r.Profile.Equal(r.Base)
}

// IsRemoved reports whether the profile declares max "0".
func (r Row) IsRemoved() bool {
	return r.Profile.IsRemoved()
}

// ElementReport compares the elements of a profile with its base resource.
type ElementReport struct {
	Name   string
	Base   string
	Type   string
	Source snapshot.Source

	// Rows holds kept and removed elements sorted by Path, slices included
	// as path:sliceName. Descendants of removed elements are not included.
	Rows []Row
}

// TopLevel returns the kept direct children of the resource.
func (r *ElementReport) TopLevel() []Row {
	var rows []Row
	for _, row := range r.Kept() {
		if !strings.Contains(row.Element, ".") {
			rows = append(rows, row)
		}
	}
	return rows
}

// Kept returns all rows that are not removed.
func (r *ElementReport) Kept() []Row {
	var rows []Row
	for _, row := range r.Rows {
		if !row.IsRemoved() {
			rows = append(rows, row)
		}
	}
	return rows
}

// Removed returns the removed elements themselves.
func (r *ElementReport) Removed() []Row {
	var rows []Row
	for _, row := range r.Rows {
		if row.IsRemoved() {
			rows = append(rows, row)
		}
	}
	return rows
}

// BuildElementReport builds the element comparison of profile against base.
// base may be nil.
func BuildElementReport(profile, base *registry.StructureDefinition, cfg *config.Config) (*ElementReport, error) {
	if cfg == nil {
		cfg = config.New()
	}

	elements, src, err := snapshot.Effective(profile, base)
	if err != nil {
		return nil, err
	}
	elements = snapshot.Reportable(profile, elements)
	var removed []string
	for i := range elements {
		if elements[i].IsRemoved() {
			removed = append(removed, rowPath(&elements[i]))
		}
	}

	var baseByPath map[string]*registry.ElementDefinition
	if base != nil {
		baseByPath = snapshot.ByPath(base.SnapshotElements())
	}

	report := &ElementReport{
		Name:   profileName(profile),
		Base:   baseName(profile),
		Type:   profile.Type,
		Source: src,
	}
	for i := range elements {
		ed := &elements[i]
		path := rowPath(ed)
		if snapshot.HiddenBy(path, removed) {
			continue
		}
		row := Row{
			Path:       path,
			Element:    element.FormatPath(path, profile.Type),
			Type:       element.TypeString(ed, cfg),
			Profile:    ed.Cardinality(),
			Slicing:    slicing.Describe(ed.Slicing),
			Binding:    element.Binding(ed.Binding),
			Attributes: element.AttributeCodes(ed),
		}
		if b, ok := baseByPath[ed.Path]; ok {
			row.Base = b.Cardinality()
			row.HasBase = true
		}
		report.Rows = append(report.Rows, row)
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		return report.Rows[i].Path < report.Rows[j].Path
	})
	return report, nil
}

// rowPath returns the path of ed with its slice name, e.g.
// Organization.identifier:ENH. Base elements are still looked up by ed.Path.
func rowPath(ed *registry.ElementDefinition) string {
	if ed.SliceName != "" && !strings.Contains(ed.Path, ":") {
		return ed.Path + ":" + ed.SliceName
	}
	return ed.Path
}

func profileName(sd *registry.StructureDefinition) string {
	if sd.Name != "" {
		return sd.Name
	}
	return "Unknown Profile"
}

func baseName(sd *registry.StructureDefinition) string {
	if sd.BaseDefinition == "" {
		return "Unknown Base"
	}
	return sd.BaseName()
}
