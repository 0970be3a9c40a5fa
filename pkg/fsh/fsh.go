// Package fsh reads the parts of FHIR Shorthand profile sources that the
// reports need: the profile header, element cardinalities, type constraints,
// element texts and reference edges.
//
// This is a line scanner, not a FSH compiler. Rule sets, aliases, insert
// rules and contexts are not expanded.
package fsh

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofhir/profiledoc/pkg/cardinality"
	"github.com/gofhir/profiledoc/pkg/registry"
)

// DefaultCardinality is used for elements without a cardinality rule.
const DefaultCardinality = "0..1"

// ErrNotProfile is returned for sources that do not declare a profile.
var ErrNotProfile = errors.New("fsh: no profile declaration")

var (
	profileRe   = regexp.MustCompile(`(?m)^Profile:\s*(\w+)`)
	parentRe    = regexp.MustCompile(`(?m)^Parent:\s*([^\r\n]+)`)
	titleRe     = regexp.MustCompile(`(?m)^Title:\s*"(.*)"`)
	descRe      = regexp.MustCompile(`(?m)^Description:\s*"(.*)"`)
	ruleRe      = regexp.MustCompile(`^\*\s+(\S+)`)
	cardRe      = regexp.MustCompile(`^\*\s+(\S+)\s+(\d+\.\.(\d+|\*))`)
	onlyRe      = regexp.MustCompile(`^\*\s+(\S+)\s+only\s+(.+)`)
	textRe      = regexp.MustCompile(`^\*\s+(\S+)\s+\^(short|definition|comment)\s*=\s*"(.*)"`)
	referenceRe = regexp.MustCompile(`Reference\(([^)]+)\)`)
)

// Element is an element constrained by the profile.
type Element struct {
	Name        string // path below the resource, e.g. subject or name.given
	Cardinality string
	Type        string // right-hand side of an only rule
	Short       string
	Definition  string
	Comment     string
}

// Reference is a reference edge declared by an only rule.
type Reference struct {
	Element     string
	Target      string
	Cardinality cardinality.Cardinality
}

// Profile is a parsed FSH profile.
type Profile struct {
	Name           string
	Parent         string
	Title          string
	Description    string
	BaseDefinition string
	Elements       []Element
	References     []Reference

	// Removed lists elements constrained to 0..0.
	Removed []string
}

// Parse reads a FSH source. Sources holding only instances or no Profile
// declaration return ErrNotProfile.
func Parse(text string) (*Profile, error) {
	if strings.HasPrefix(strings.TrimSpace(text), "Instance:") {
		return nil, ErrNotProfile
	}
	m := profileRe.FindStringSubmatch(text)
	if m == nil {
		return nil, ErrNotProfile
	}

	p := &Profile{Name: m[1]}
	if m := parentRe.FindStringSubmatch(text); m != nil {
		p.Parent = strings.TrimSpace(m[1])
		p.BaseDefinition = baseDefinition(p.Parent)
	}
	if m := titleRe.FindStringSubmatch(text); m != nil {
		p.Title = m[1]
	}
	if m := descRe.FindStringSubmatch(text); m != nil {
		p.Description = m[1]
	}

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	for _, line := range lines {
		if strings.Contains(line, "0..0") {
			if m := ruleRe.FindStringSubmatch(line); m != nil {
				p.Removed = append(p.Removed, m[1])
			}
		}
	}

	p.Elements = p.parseElements(lines)
	p.References = p.parseReferences(lines)
	return p, nil
}

func baseDefinition(parent string) string {
	if strings.HasPrefix(parent, "http://") || strings.HasPrefix(parent, "https://") {
		return parent
	}
	return registry.GetSDForResource(parent)
}

// IsRemoved reports whether name, or an element it lies under, is 0..0.
func (p *Profile) IsRemoved(name string) bool {
	for _, r := range p.Removed {
		if name == r || strings.HasPrefix(name, r+".") || strings.HasPrefix(name, r+"[") {
			return true
		}
	}
	return false
}

func (p *Profile) parseElements(lines []string) []Element {
	var order []string
	byName := make(map[string]*Element)
	get := func(name string) *Element {
		if e, ok := byName[name]; ok {
			return e
		}
		e := &Element{Name: name}
		byName[name] = e
		order = append(order, name)
		return e
	}

	for _, line := range lines {
		if !strings.HasPrefix(line, "*") {
			continue
		}
		if m := ruleRe.FindStringSubmatch(line); m == nil || p.IsRemoved(m[1]) {
			continue
		}
		if m := cardRe.FindStringSubmatch(line); m != nil {
			get(m[1]).Cardinality = m[2]
		}
		if m := onlyRe.FindStringSubmatch(line); m != nil {
			get(m[1]).Type = strings.TrimSpace(m[2])
		}
		if m := textRe.FindStringSubmatch(line); m != nil {
			e := get(m[1])
			switch m[2] {
			case "short":
				e.Short = m[3]
			case "definition":
				e.Definition = m[3]
			case "comment":
				e.Comment = m[3]
			}
		}
	}

	elements := make([]Element, 0, len(order))
	for _, name := range order {
		e := byName[name]
		if e.Cardinality == "" {
			e.Cardinality = DefaultCardinality
		}
		elements = append(elements, *e)
	}
	return elements
}

// parseReferences collects the targets of only Reference(...) rules. The
// cardinality is taken from a rule for the same element within two lines.
func (p *Profile) parseReferences(lines []string) []Reference {
	var refs []Reference
	for i, line := range lines {
		if !strings.Contains(line, "Reference(") || !strings.Contains(line, "only") {
			continue
		}
		em := ruleRe.FindStringSubmatch(line)
		rm := referenceRe.FindStringSubmatch(line)
		if em == nil || rm == nil || p.IsRemoved(em[1]) {
			continue
		}
		name := em[1]
		card := nearbyCardinality(lines, i, name)
		for _, target := range splitTargets(rm[1]) {
			refs = append(refs, Reference{Element: name, Target: target, Cardinality: card})
		}
	}
	return refs
}

func nearbyCardinality(lines []string, i int, name string) cardinality.Cardinality {
	re := regexp.MustCompile(`\*\s+` + regexp.QuoteMeta(name) + `\s+(\d+\.\.[0-9*]+)`)
	for j := max(0, i-2); j < min(len(lines), i+3); j++ {
		if m := re.FindStringSubmatch(lines[j]); m != nil {
			if c, err := cardinality.Parse(m[1]); err == nil {
				return c
			}
		}
	}
	c, _ := cardinality.Parse(DefaultCardinality)
	return c
}

// splitTargets splits "A or B | C" into its target names.
func splitTargets(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' }) {
		for _, t := range strings.Split(part, " or ") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// ToStructureDefinition projects the profile onto a StructureDefinition with
// a differential only, so the text and diagram reports can read it.
func (p *Profile) ToStructureDefinition() *registry.StructureDefinition {
	typeName := registry.LastSegment(p.Parent)
	sd := &registry.StructureDefinition{
		ResourceType:   "StructureDefinition",
		ID:             p.Name,
		Name:           p.Name,
		Title:          p.Title,
		Description:    p.Description,
		Kind:           registry.KindResource,
		Type:           typeName,
		BaseDefinition: p.BaseDefinition,
		Derivation:     "constraint",
		Differential:   &registry.Differential{},
	}

	for i := range p.Elements {
		e := &p.Elements[i]
		ed := registry.ElementDefinition{
			ID:         typeName + "." + e.Name,
			Path:       typeName + "." + e.Name,
			Short:      e.Short,
			Definition: e.Definition,
			Comment:    e.Comment,
			Type:       parseTypes(e.Type),
		}
		if c, err := cardinality.Parse(e.Cardinality); err == nil {
			lo, hi := c.Min, c.Max
			ed.Min, ed.Max = &lo, &hi
		}
		sd.Differential.Element = append(sd.Differential.Element, ed)
	}
	return sd
}

// parseTypes reads the right-hand side of an only rule.
func parseTypes(s string) registry.Types {
	if s == "" {
		return nil
	}
	var types registry.Types
	rest := s
	for {
		loc := referenceRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		types = append(types, registry.Type{
			Code:          "Reference",
			TargetProfile: splitTargets(rest[loc[2]:loc[3]]),
		})
		rest = rest[:loc[0]] + rest[loc[1]:]
	}
	for _, code := range splitTargets(rest) {
		if code != "or" {
			types = append(types, registry.Type{Code: code})
		}
	}
	return types
}

// Summary returns "name (n elements, m references)" for log lines.
func (p *Profile) Summary() string {
	return p.Name + " (" + strconv.Itoa(len(p.Elements)) + " elements, " + strconv.Itoa(len(p.References)) + " references)"
}
