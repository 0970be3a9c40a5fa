// Package registry provides the StructureDefinition model and a per-run
// registry of loaded documents.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gofhir/profiledoc/pkg/cardinality"
)

// StructureDefinition.Kind constants.
const (
	KindResource    = "resource"
	KindComplexType = "complex-type"
)

// StructureDefinition represents a minimal view of a FHIR StructureDefinition.
// We use a lightweight struct so that partially valid profile documents can
// still be reported on.
type StructureDefinition struct {
	ResourceType   string `json:"resourceType"`
	ID             string `json:"id,omitempty"`
	URL            string `json:"url,omitempty"`
	Name           string `json:"name,omitempty"`
	Title          string `json:"title,omitempty"`
	Kind           string `json:"kind,omitempty"` // resource, complex-type, primitive-type, logical
	Abstract       bool   `json:"abstract,omitempty"`
	Type           string `json:"type,omitempty"`           // The type this SD defines
	BaseDefinition string `json:"baseDefinition,omitempty"` // URL of the base SD
	Derivation     string `json:"derivation,omitempty"`     // specialization | constraint
	FhirVersion    string `json:"fhirVersion,omitempty"`
	Description    string `json:"description,omitempty"`
	Purpose        string `json:"purpose,omitempty"`

	Snapshot     *Snapshot     `json:"snapshot,omitempty"`
	Differential *Differential `json:"differential,omitempty"`

	// Raw JSON of the whole document
	raw json.RawMessage
}

// Parse decodes a StructureDefinition document and keeps its raw bytes.
func Parse(data []byte) (*StructureDefinition, error) {
	var sd StructureDefinition
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("failed to decode StructureDefinition: %w", err)
	}
	sd.raw = append(json.RawMessage(nil), data...)
	return &sd, nil
}

// Raw returns the document bytes the definition was parsed from.
func (sd *StructureDefinition) Raw() json.RawMessage {
	return sd.raw
}

// SnapshotElements returns the snapshot element list, or nil.
func (sd *StructureDefinition) SnapshotElements() []ElementDefinition {
	if sd == nil || sd.Snapshot == nil {
		return nil
	}
	return sd.Snapshot.Element
}

// DifferentialElements returns the differential element list, or nil.
func (sd *StructureDefinition) DifferentialElements() []ElementDefinition {
	if sd == nil || sd.Differential == nil {
		return nil
	}
	return sd.Differential.Element
}

// BaseName returns the last segment of baseDefinition with any
// "StructureDefinition-" prefix removed.
func (sd *StructureDefinition) BaseName() string {
	return LastSegment(sd.BaseDefinition)
}

// LastSegment returns the text after the last slash of a canonical URL, with
// a leading "StructureDefinition-" removed.
func LastSegment(url string) string {
	if i := strings.LastIndex(url, "/"); i >= 0 {
		url = url[i+1:]
	}
	return strings.TrimPrefix(url, "StructureDefinition-")
}

// Snapshot contains the complete set of ElementDefinitions.
type Snapshot struct {
	Element []ElementDefinition `json:"element"`
}

// UnmarshalJSON implements custom unmarshaling to preserve raw JSON for each element.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	elements, err := decodeElements(data)
	if err != nil {
		return err
	}
	s.Element = elements
	return nil
}

// Differential contains only the modified ElementDefinitions.
type Differential struct {
	Element []ElementDefinition `json:"element"`
}

// UnmarshalJSON implements custom unmarshaling to preserve raw JSON for each element.
func (d *Differential) UnmarshalJSON(data []byte) error {
	elements, err := decodeElements(data)
	if err != nil {
		return err
	}
	d.Element = elements
	return nil
}

func decodeElements(data []byte) ([]ElementDefinition, error) {
	var raw struct {
		Element []json.RawMessage `json:"element"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	elements := make([]ElementDefinition, len(raw.Element))
	for i, elemRaw := range raw.Element {
		ed, err := ParseElement(elemRaw)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		elements[i] = ed
	}
	return elements, nil
}

// ElementDefinition represents a FHIR ElementDefinition.
type ElementDefinition struct {
	ID         string      `json:"id,omitempty"`
	Path       string      `json:"path"`
	SliceName  string      `json:"sliceName,omitempty"`
	Min        *int        `json:"min,omitempty"`
	Max        *string     `json:"max,omitempty"`
	Type       Types       `json:"type,omitempty"`
	Binding    *Binding    `json:"binding,omitempty"`
	Slicing    *Slicing    `json:"slicing,omitempty"`
	Short      string      `json:"short,omitempty"`
	Definition string      `json:"definition,omitempty"`
	Comment    string      `json:"comment,omitempty"`
	Extension  []Extension `json:"extension,omitempty"`

	MustSupport bool `json:"mustSupport,omitempty"`
	IsModifier  bool `json:"isModifier,omitempty"`
	IsSummary   bool `json:"isSummary,omitempty"`

	PatternURI        string      `json:"patternUri,omitempty"`
	PatternIdentifier *Identifier `json:"patternIdentifier,omitempty"`

	// Raw JSON for dynamic access to fixed[x] and pattern[x] and for the
	// key-wise merge used when a snapshot has to be reconstructed.
	raw json.RawMessage
}

// ParseElement decodes a single element and keeps its raw JSON.
func ParseElement(data []byte) (ElementDefinition, error) {
	var ed ElementDefinition
	if err := json.Unmarshal(data, &ed); err != nil {
		return ElementDefinition{}, err
	}
	ed.raw = append(json.RawMessage(nil), data...)
	return ed, nil
}

// SetRaw stores the raw JSON for this ElementDefinition.
func (ed *ElementDefinition) SetRaw(data json.RawMessage) {
	ed.raw = data
}

// Raw returns the element JSON. Elements built in code are marshaled on demand.
func (ed *ElementDefinition) Raw() json.RawMessage {
	if ed.raw != nil {
		return ed.raw
	}
	data, err := json.Marshal(ed)
	if err != nil {
		return nil
	}
	return data
}

// HasMin reports whether min was declared.
func (ed *ElementDefinition) HasMin() bool { return ed.Min != nil }

// HasMax reports whether max was declared.
func (ed *ElementDefinition) HasMax() bool { return ed.Max != nil }

// MinValue returns the declared min, or 0.
func (ed *ElementDefinition) MinValue() int {
	if ed.Min == nil {
		return 0
	}
	return *ed.Min
}

// MaxValue returns the declared max, or "*".
func (ed *ElementDefinition) MaxValue() string {
	if ed.Max == nil {
		return "*"
	}
	return *ed.Max
}

// Cardinality returns min..max using the FHIR defaults for absent values.
func (ed *ElementDefinition) Cardinality() cardinality.Cardinality {
	return cardinality.New(ed.MinValue(), ed.MaxValue())
}

// IsRemoved reports whether max is declared as "0".
func (ed *ElementDefinition) IsRemoved() bool {
	return ed.Max != nil && *ed.Max == "0"
}

// Depth returns the number of dots in the path.
func (ed *ElementDefinition) Depth() int {
	return strings.Count(ed.Path, ".")
}

// Name returns the last path segment.
func (ed *ElementDefinition) Name() string {
	if i := strings.LastIndex(ed.Path, "."); i >= 0 {
		return ed.Path[i+1:]
	}
	return ed.Path
}

// TypeCodes returns the type codes in declaration order.
func (ed *ElementDefinition) TypeCodes() []string {
	codes := make([]string, 0, len(ed.Type))
	for _, t := range ed.Type {
		codes = append(codes, t.Code)
	}
	return codes
}

// FirstTypeCode returns the first type code, or "".
func (ed *ElementDefinition) FirstTypeCode() string {
	if len(ed.Type) == 0 {
		return ""
	}
	return ed.Type[0].Code
}

// HasTypeCode reports whether any type entry has the given code.
func (ed *ElementDefinition) HasTypeCode(code string) bool {
	for _, t := range ed.Type {
		if t.Code == code {
			return true
		}
	}
	return false
}

// Text returns short, definition or comment by name.
func (ed *ElementDefinition) Text(prop string) string {
	switch prop {
	case "short":
		return ed.Short
	case "definition":
		return ed.Definition
	case "comment":
		return ed.Comment
	}
	return ""
}

// GetFixed extracts fixed[x] value dynamically from raw JSON.
// Returns the value, type suffix (e.g., "Uri", "Code", "Coding"), and whether it exists.
func (ed *ElementDefinition) GetFixed() (value json.RawMessage, typeSuffix string, exists bool) {
	return extractPrefixedValue(ed.raw, "fixed")
}

// GetPattern extracts pattern[x] value dynamically from raw JSON.
// Returns the value, type suffix (e.g., "Coding", "CodeableConcept"), and whether it exists.
func (ed *ElementDefinition) GetPattern() (value json.RawMessage, typeSuffix string, exists bool) {
	if ed.raw == nil {
		if ed.PatternURI != "" {
			v, _ := json.Marshal(ed.PatternURI)
			return v, "Uri", true
		}
		if ed.PatternIdentifier != nil {
			v, _ := json.Marshal(ed.PatternIdentifier)
			return v, "Identifier", true
		}
	}
	return extractPrefixedValue(ed.raw, "pattern")
}

// extractPrefixedValue finds a key with the given prefix in the raw JSON.
// Used for polymorphic properties like fixed[x] and pattern[x].
func extractPrefixedValue(raw json.RawMessage, prefix string) (json.RawMessage, string, bool) {
	if raw == nil {
		return nil, "", false
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, "", false
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			return obj[key], strings.TrimPrefix(key, prefix), true
		}
	}
	return nil, "", false
}

// Type represents an allowed type for an element.
type Type struct {
	Code          string      `json:"code"`
	Profile       StringList  `json:"profile,omitempty"`
	TargetProfile StringList  `json:"targetProfile,omitempty"`
	Extension     []Extension `json:"extension,omitempty"`
}

// Types is the element type list. It also accepts a single type object or a
// bare type code string.
type Types []Type

// UnmarshalJSON accepts a list, a single object or a string.
func (ts *Types) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*ts = nil
		return nil
	case strings.HasPrefix(trimmed, "["):
		var list []Type
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*ts = list
	case strings.HasPrefix(trimmed, "{"):
		var t Type
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*ts = Types{t}
	default:
		var code string
		if err := json.Unmarshal(data, &code); err != nil {
			return err
		}
		*ts = Types{{Code: code}}
	}
	return nil
}

// StringList is a list of strings that also decodes from a single string.
type StringList []string

// UnmarshalJSON accepts a list or a single string.
func (sl *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*sl = nil
		} else {
			*sl = StringList{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*sl = list
	return nil
}

// Extension represents a FHIR extension.
type Extension struct {
	URL         string `json:"url"`
	ValueString string `json:"valueString,omitempty"`
	ValueURL    string `json:"valueUrl,omitempty"`
}

// Identifier is the part of a FHIR Identifier used by slice detection.
type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Binding represents a terminology binding.
type Binding struct {
	Strength    string      `json:"strength,omitempty"` // required | extensible | preferred | example
	ValueSet    ValueSetRef `json:"valueSet,omitempty"`
	Description string      `json:"description,omitempty"`
	Extension   []Extension `json:"extension,omitempty"`
}

// ExtensionValue returns valueString of the first extension with the url.
func (b *Binding) ExtensionValue(url string) string {
	if b == nil {
		return ""
	}
	for _, ext := range b.Extension {
		if ext.URL == url {
			return ext.ValueString
		}
	}
	return ""
}

// ValueSetRef is a binding valueSet. R4 uses a canonical string; some tools
// emit an object with url, display and version.
type ValueSetRef struct {
	URL     string `json:"url,omitempty"`
	Display string `json:"display,omitempty"`
	Version string `json:"version,omitempty"`
}

// IsZero reports whether nothing was set.
func (v ValueSetRef) IsZero() bool {
	return v.URL == "" && v.Display == "" && v.Version == ""
}

// UnmarshalJSON accepts a string or an object.
func (v *ValueSetRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = ValueSetRef{URL: s}
		return nil
	}
	type plain ValueSetRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*v = ValueSetRef(p)
	return nil
}

// MarshalJSON writes the canonical string form when only the url is set.
func (v ValueSetRef) MarshalJSON() ([]byte, error) {
	if v.Display == "" && v.Version == "" {
		return json.Marshal(v.URL)
	}
	type plain ValueSetRef
	return json.Marshal(plain(v))
}

// Slicing represents slicing rules for an element.
type Slicing struct {
	Discriminator []Discriminator `json:"discriminator,omitempty"`
	Name          string          `json:"name,omitempty"`
	Description   string          `json:"description,omitempty"`
	Ordered       bool            `json:"ordered,omitempty"`
	Rules         string          `json:"rules,omitempty"` // open | closed | openAtEnd
}

// Discriminator defines how to match elements to slices.
type Discriminator struct {
	Type string `json:"type"` // value | exists | pattern | type | profile
	Path string `json:"path"`
}

// Registry holds loaded StructureDefinitions for one run, keyed by the URL or
// path they were resolved from. Each key is written once and read many times.
type Registry struct {
	mu     sync.RWMutex
	byURL  map[string]*StructureDefinition
	byType map[string]*StructureDefinition // For base types like "Patient", "HumanName"
}

// New creates a new empty Registry.
func New() *Registry {
	return &Registry{
		byURL:  make(map[string]*StructureDefinition),
		byType: make(map[string]*StructureDefinition),
	}
}

// Add stores sd under key. The first document stored under a key wins and is
// returned.
func (r *Registry) Add(key string, sd *StructureDefinition) *StructureDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byURL[key]; ok {
		return existing
	}
	r.byURL[key] = sd
	if sd.URL != "" && sd.URL != key {
		if _, ok := r.byURL[sd.URL]; !ok {
			r.byURL[sd.URL] = sd
		}
	}

	// Index by type for base definitions - first definition wins
	if sd.Type != "" && sd.Derivation != "constraint" {
		if _, exists := r.byType[sd.Type]; !exists {
			r.byType[sd.Type] = sd
		}
	}
	return sd
}

// GetByURL returns a StructureDefinition by the key or canonical URL it was stored under.
func (r *Registry) GetByURL(url string) *StructureDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byURL[url]
}

// GetByType returns a base StructureDefinition for a type name (e.g., "Patient").
func (r *Registry) GetByType(typeName string) *StructureDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[typeName]
}

// Count returns the number of keys stored.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byURL)
}

// AllTypes returns all registered type names, sorted.
func (r *Registry) AllTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// GetSDForResource returns the core StructureDefinition URL for a resource type.
func GetSDForResource(resourceType string) string {
	return fmt.Sprintf("http://hl7.org/fhir/StructureDefinition/%s", resourceType)
}
