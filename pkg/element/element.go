// Package element derives the display strings of a single ElementDefinition:
// type, binding, attribute codes and path.
package element

import (
	"strings"

	"github.com/gofhir/profiledoc/pkg/registry"
)

const (
	// SystemTypePrefix is stripped from FHIRPath system type codes.
	SystemTypePrefix = "http://hl7.org/fhirpath/System."

	// HL7Prefix marks extensions defined by HL7.
	HL7Prefix = "http://hl7.org/"

	// BindingNameURL is the extension carrying a binding's display name.
	BindingNameURL = "http://hl7.org/fhir/StructureDefinition/elementdefinition-bindingName"

	// MaxPathLength is the longest path shown unabridged.
	MaxPathLength = 100

	// pathTail is how much of an abridged path is kept.
	pathTail = 40
)

// Names maps profile ids to display names.
type Names interface {
	MapName(id string) string
}

// StandardSet tells which element names are never attributes.
type StandardSet interface {
	IsStandardElement(name string) bool
}

// Code is an attribute decoration code.
type Code struct {
	Code        string
	Description string
}

// Codes is the legend of AttributeCodes, in output order.
var Codes = []Code{
	{"MS", "Must Support"},
	{"?!", "Is Modifier"},
	{"SU", "Is Summary"},
	{"F", "Fixed Value"},
	{"E", "Has Extensions"},
}

// TypeCode strips the FHIRPath system prefix from a type code.
func TypeCode(code string) string {
	return strings.TrimPrefix(code, SystemTypePrefix)
}

// TypeString renders the element type list joined by " | ". References show
// their mapped target names, extensions their defining URL with a trailing
// "*" when it is not an HL7 extension.
func TypeString(ed *registry.ElementDefinition, names Names) string {
	parts := make([]string, 0, len(ed.Type))
	for _, t := range ed.Type {
		if t.Code == "" {
			continue
		}
		switch t.Code {
		case "Reference":
			parts = append(parts, ReferenceString(t.TargetProfile, names))
		case "Extension":
			parts = append(parts, ExtensionString(extensionURL(t)))
		default:
			parts = append(parts, TypeCode(t.Code))
		}
	}
	return strings.Join(parts, " | ")
}

// ReferenceString renders Reference(A | B), or a bare Reference without targets.
func ReferenceString(targets []string, names Names) string {
	if len(targets) == 0 {
		return "Reference"
	}
	mapped := make([]string, len(targets))
	for i, url := range targets {
		mapped[i] = DisplayName(url, names)
	}
	return "Reference(" + strings.Join(mapped, " | ") + ")"
}

// DisplayName maps the last segment of a profile URL through names.
func DisplayName(url string, names Names) string {
	id := registry.LastSegment(url)
	if names == nil {
		return id
	}
	return names.MapName(id)
}

// ExtensionString renders Extension (url) with "*" for custom extensions.
func ExtensionString(url string) string {
	if url == "" {
		return "Extension"
	}
	if IsCustomExtension(url) {
		return "Extension (" + url + "*)"
	}
	return "Extension (" + url + ")"
}

// IsCustomExtension reports whether url is not an HL7 URL.
func IsCustomExtension(url string) bool {
	return !strings.HasPrefix(url, HL7Prefix)
}

func extensionURL(t registry.Type) string {
	if len(t.Profile) > 0 {
		return t.Profile[0]
	}
	return ""
}

// AttributeCodes returns the space-joined decoration codes of ed.
func AttributeCodes(ed *registry.ElementDefinition) string {
	var codes []string
	if ed.MustSupport {
		codes = append(codes, "MS")
	}
	if ed.IsModifier {
		codes = append(codes, "?!")
	}
	if ed.IsSummary {
		codes = append(codes, "SU")
	}
	if HasFixedOrPattern(ed) {
		codes = append(codes, "F")
	}
	if len(ed.Extension) > 0 {
		codes = append(codes, "E")
	}
	return strings.Join(codes, " ")
}

// HasFixedOrPattern reports whether ed declares any fixed[x] or pattern[x].
func HasFixedOrPattern(ed *registry.ElementDefinition) bool {
	if _, _, ok := ed.GetFixed(); ok {
		return true
	}
	_, _, ok := ed.GetPattern()
	return ok
}

// Binding renders "display (url, version) [strength]".
func Binding(b *registry.Binding) string {
	if b == nil {
		return ""
	}
	vs := b.ValueSet
	if vs.Display == "" && vs.URL == "" && b.Strength == "" {
		return ""
	}

	var parts []string
	if vs.Display != "" {
		parts = append(parts, vs.Display)
	}
	if vs.URL != "" {
		ref := "(" + vs.URL
		if vs.Version != "" {
			ref += ", " + vs.Version
		}
		parts = append(parts, ref+")")
	}
	if b.Strength != "" {
		parts = append(parts, "["+b.Strength+"]")
	}
	return strings.Join(parts, " ")
}

// TextBinding renders "Strength binding: [name](valueSet): <br> description"
// for the text comparison report. Each part is passed through escape first;
// a nil escape leaves the text as is.
func TextBinding(b *registry.Binding, escape func(string) string) string {
	if b == nil {
		return ""
	}
	if escape == nil {
		escape = func(s string) string { return s }
	}

	strength := b.Strength
	if strength != "" {
		strength = strings.ToUpper(strength[:1]) + strength[1:]
	}
	name := escape(b.ExtensionValue(BindingNameURL))
	valueSet := escape(b.ValueSet.URL)
	description := escape(b.Description)

	text := escape(strength) + " binding: "
	switch {
	case name != "" && valueSet != "":
		text += "[" + name + "](" + valueSet + ")"
	case valueSet != "":
		text += "[" + valueSet + "](" + valueSet + ")"
	}
	if description != "" {
		text += ": <br> " + description
	}
	return text
}

// IsAttribute reports whether ed is drawn as a class attribute: a depth-1
// element that is not a Reference, or a child of a depth-1 BackboneElement.
// Standard elements never are.
func IsAttribute(ed *registry.ElementDefinition, byPath map[string]*registry.ElementDefinition, std StandardSet) bool {
	parts := strings.Split(ed.Path, ".")
	name := parts[len(parts)-1]
	if std != nil && std.IsStandardElement(name) {
		return false
	}

	switch len(parts) {
	case 2:
		return !ed.HasTypeCode("Reference")
	case 3:
		parent, ok := byPath[parts[0]+"."+parts[1]]
		return ok && parent.HasTypeCode("BackboneElement")
	default:
		return false
	}
}

// ReferenceTargets returns the target type names of all Reference types,
// skipping Extension targets.
func ReferenceTargets(ed *registry.ElementDefinition) []string {
	var targets []string
	for _, t := range ed.Type {
		if t.Code != "Reference" {
			continue
		}
		for _, url := range t.TargetProfile {
			if strings.Contains(url, "Extension") {
				continue
			}
			targets = append(targets, registry.LastSegment(url))
		}
	}
	return targets
}

// FormatPath strips the "Type." prefix and abridges very long paths to
// "..." plus their last 40 characters.
func FormatPath(path, typeName string) string {
	path = strings.TrimPrefix(path, typeName+".")
	if len(path) > MaxPathLength {
		return "..." + path[len(path)-pathTail:]
	}
	return path
}

// ShortName returns path without its root segment, or path itself at the root.
func ShortName(path string) string {
	if _, rest, ok := strings.Cut(path, "."); ok {
		return rest
	}
	return path
}
