package analysis

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/gofhir/profiledoc/pkg/cardinality"
	"github.com/gofhir/profiledoc/pkg/config"
	"github.com/gofhir/profiledoc/pkg/element"
	"github.com/gofhir/profiledoc/pkg/registry"
	"github.com/gofhir/profiledoc/pkg/snapshot"
)

// Example instance constants.
const (
	ExampleID        = "example-1"
	ExampleTimestamp = "2024-02-05T13:28:17+01:00"
	exampleOID       = "urn:oid:2.16.578.1.12.4.1.4.1"
	exampleCodeSys   = "http://terminology.hl7.org/CodeSystem/v2-0203"
)

// Change lists how a profile constrains one base element.
type Change struct {
	Path        string
	Element     string // last path segment
	Type        string // base type code
	Cardinality cardinality.Cardinality
	Changes     []string
}

// Summary joins the changes with ", ", or returns "-".
func (c Change) Summary() string {
	if len(c.Changes) == 0 {
		return "-"
	}
	return strings.Join(c.Changes, ", ")
}

// ChangeReport lists every base element with the profile's changes and
// carries a generated example instance.
type ChangeReport struct {
	Title   string
	Base    string
	Type    string
	Changes []Change
	Example *Object
}

// BuildChangeReport compares profile with base element by element. With a
// nil base the report has no rows.
func BuildChangeReport(profile, base *registry.StructureDefinition, cfg *config.Config) (*ChangeReport, error) {
	if cfg == nil {
		cfg = config.New()
	}

	profileElements, _, err := snapshot.Effective(profile, base)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]*registry.ElementDefinition, len(profileElements))
	for i := range profileElements {
		byPath[profileElements[i].Path] = &profileElements[i]
	}

	report := &ChangeReport{
		Title: changeTitle(profile),
		Base:  profile.BaseName(),
		Type:  profile.Type,
	}
	if report.Type == "" {
		report.Type = report.Base
	}

	for _, b := range base.SnapshotElements() {
		if b.Depth() < 1 {
			continue
		}
		report.Changes = append(report.Changes, compare(&b, byPath[b.Path]))
	}
	report.Example = BuildExample(report.Type, report.Changes, cfg)
	return report, nil
}

func changeTitle(sd *registry.StructureDefinition) string {
	switch {
	case sd.Title != "":
		return sd.Title
	case sd.Name != "":
		return sd.Name
	}
	return "Unknown"
}

func compare(b, p *registry.ElementDefinition) Change {
	c := Change{
		Path:        b.Path,
		Element:     b.Name(),
		Type:        element.TypeCode(b.FirstTypeCode()),
		Cardinality: b.Cardinality(),
	}
	if p == nil {
		return c
	}

	baseMin, baseMax := b.MinValue(), b.MaxValue()
	if p.HasMin() && p.MinValue() != baseMin {
		c.Changes = append(c.Changes, "min: "+strconv.Itoa(baseMin)+"→"+strconv.Itoa(p.MinValue()))
	}
	if p.HasMax() && p.MaxValue() != baseMax {
		c.Changes = append(c.Changes, "max: "+baseMax+"→"+p.MaxValue())
	}
	if len(p.Type) > 0 {
		if pt := element.TypeCode(p.FirstTypeCode()); pt != c.Type {
			c.Changes = append(c.Changes, "type: "+c.Type+"→"+pt)
		}
	}
	if p.MustSupport {
		c.Changes = append(c.Changes, "MS")
	}
	if _, _, ok := p.GetFixed(); ok {
		c.Changes = append(c.Changes, "fixed")
	}
	if _, _, ok := p.GetPattern(); ok {
		c.Changes = append(c.Changes, "pattern")
	}

	profileCard := cardinality.New(baseMin, baseMax)
	if p.HasMin() {
		profileCard.Min = p.MinValue()
	}
	if p.HasMax() {
		profileCard.Max = p.MaxValue()
	}
	c.Cardinality = profileCard
	return c
}

// BuildExample generates an example instance of resourceType with a value
// for every element that is not removed. Standard elements such as id and
// meta are left to the fixed header.
func BuildExample(resourceType string, changes []Change, cfg *config.Config) *Object {
	if cfg == nil {
		cfg = config.New()
	}

	example := NewObject()
	example.Set("resourceType", resourceType)
	example.Set("id", ExampleID)
	meta := NewObject()
	meta.Set("versionId", "1")
	meta.Set("lastUpdated", ExampleTimestamp)
	example.Set("meta", meta)

	var removed []string
	for _, c := range changes {
		if c.Cardinality.IsRemoved() {
			removed = append(removed, c.Path)
		}
	}

	for _, c := range changes {
		if c.Cardinality.IsRemoved() || snapshot.HiddenBy(c.Path, removed) || strings.Contains(c.Path, ":") {
			continue
		}
		parts := strings.Split(c.Path, ".")[1:]
		if len(parts) == 0 || cfg.IsStandardElement(parts[0]) || cfg.IsStandardElement(parts[len(parts)-1]) {
			continue
		}

		current := example
		for _, part := range parts[:len(parts)-1] {
			next, ok := current.Object(part)
			if !ok {
				current = nil
				break
			}
			current = next
		}
		if current == nil {
			continue
		}

		key := parts[len(parts)-1]
		if strings.HasSuffix(key, "[x]") {
			key = strings.TrimSuffix(key, "[x]") + strcase.ToCamel(c.Type)
		}
		current.Set(key, exampleValue(c.Type, key))
	}
	return example
}

// exampleValue returns a sample value for a type code.
func exampleValue(code, part string) any {
	switch code {
	case "string", "markdown":
		return "Example " + part
	case "code":
		return "active"
	case "uri", "url", "canonical":
		return exampleOID
	case "boolean":
		return true
	case "integer", "positiveInt", "unsignedInt":
		return 42
	case "decimal":
		return 37.5
	case "base64Binary":
		return "SGVsbG8="
	case "instant", "dateTime":
		return ExampleTimestamp
	case "date":
		return "2024-02-05"
	case "time":
		return "13:28:17"
	case "BackboneElement", "Element":
		return NewObject()
	case "Identifier":
		o := NewObject()
		o.Set("system", exampleOID)
		o.Set("value", "04021550123")
		return o
	case "HumanName":
		o := NewObject()
		o.Set("use", "official")
		o.Set("family", "Olsen")
		o.Set("given", []string{"Erik"})
		return o
	case "Address":
		o := NewObject()
		o.Set("use", "home")
		o.Set("line", []string{"Storgata 55"})
		o.Set("city", "Oslo")
		o.Set("postalCode", "0182")
		o.Set("country", "NO")
		return o
	case "ContactPoint":
		o := NewObject()
		o.Set("system", "phone")
		o.Set("value", "+47 99887766")
		o.Set("use", "work")
		return o
	case "Period":
		o := NewObject()
		o.Set("start", "2024-02-05")
		o.Set("end", "2024-03-05")
		return o
	case "Coding":
		return exampleCoding()
	case "CodeableConcept":
		o := NewObject()
		o.Set("coding", []*Object{exampleCoding()})
		o.Set("text", "Medical record number")
		return o
	case "Reference":
		o := NewObject()
		o.Set("reference", "Organization/example")
		o.Set("display", "Example Organization")
		return o
	}
	return "Example " + code
}

func exampleCoding() *Object {
	o := NewObject()
	o.Set("system", exampleCodeSys)
	o.Set("code", "MR")
	o.Set("display", "Medical record number")
	return o
}

// Object is a JSON object that keeps insertion order when marshaled.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set stores value under key, keeping the position of an existing key.
func (o *Object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value of key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Object returns the nested object under key, creating it when absent. It
// fails when key holds a value of another kind.
func (o *Object) Object(key string) (*Object, bool) {
	v, ok := o.values[key]
	if !ok {
		child := NewObject()
		o.Set(key, child)
		return child, true
	}
	child, ok := v.(*Object)
	return child, ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	return o.keys
}

// MarshalJSON writes the keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
