package analysis

import (
	"context"
	"sort"
	"strings"

	"github.com/gofhir/profiledoc"
	"github.com/gofhir/profiledoc/pkg/cardinality"
	"github.com/gofhir/profiledoc/pkg/config"
	"github.com/gofhir/profiledoc/pkg/element"
	"github.com/gofhir/profiledoc/pkg/logger"
	"github.com/gofhir/profiledoc/pkg/registry"
	"github.com/gofhir/profiledoc/pkg/snapshot"
)

// Mode selects which diagram is drawn.
type Mode int

const (
	// ModeComplete draws classes with attributes and every reference edge
	// with its combined cardinality.
	ModeComplete Mode = iota
	// ModeReferences draws bare classes and the direct references of each
	// resource.
	ModeReferences
)

// String returns the mode name used on the command line.
func (m Mode) String() string {
	if m == ModeReferences {
		return "references"
	}
	return "complete"
}

// ParseMode parses "complete" or "references".
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "complete", "":
		return ModeComplete, true
	case "references", "refs":
		return ModeReferences, true
	}
	return ModeComplete, false
}

// Attribute is one class member.
type Attribute struct {
	Name        string
	Type        string
	Cardinality cardinality.Cardinality
	Path        string
	SliceName   string
}

// Reference is a reference edge from a structure.
type Reference struct {
	Key         string
	Target      string // target profile id
	Field       string
	Cardinality cardinality.Cardinality
}

// Structure is the diagram view of one StructureDefinition.
type Structure struct {
	Name       string
	ID         string
	BaseType   string
	Local      bool
	Attributes []Attribute
	References []Reference
}

// BuildStructure extracts the attributes and reference edges of sd. Only
// resources and complex types are drawn; other kinds return nil.
func BuildStructure(sd *registry.StructureDefinition, cfg *config.Config, mode Mode) *Structure {
	if sd.Kind != registry.KindResource && sd.Kind != registry.KindComplexType {
		logger.Debug("skipping %s: kind %q", sd.ID, sd.Kind)
		return nil
	}
	if cfg == nil {
		cfg = config.New()
	}

	elements := sd.SnapshotElements()
	if len(elements) == 0 {
		elements = sd.DifferentialElements()
	}

	s := &Structure{
		ID:       sd.ID,
		BaseType: sd.BaseName(),
		Local:    true,
	}
	if mode == ModeReferences {
		s.Name = referencesName(sd, cfg)
		s.References = directReferences(elements)
	} else {
		s.Name = structureName(sd, cfg)
		s.collect(elements, cfg)
	}
	return s
}

// structureName maps the first non-empty of name, id and type.
func structureName(sd *registry.StructureDefinition, cfg *config.Config) string {
	for _, v := range []string{sd.Name, sd.ID, sd.Type} {
		if v != "" {
			return cfg.MapName(v)
		}
	}
	return ""
}

// referencesName uses the profile id when it has a display name, else the
// resource type.
func referencesName(sd *registry.StructureDefinition, cfg *config.Config) string {
	if name := cfg.MapName(sd.ID); sd.ID != "" && name != strings.TrimPrefix(sd.ID, "StructureDefinition-") {
		return name
	}
	return cfg.MapName(sd.Type)
}

func (s *Structure) collect(elements []registry.ElementDefinition, cfg *config.Config) {
	cards := make(map[string]cardinality.Cardinality, len(elements))
	byPath := make(map[string]*registry.ElementDefinition, len(elements))
	var removed []string
	for i := range elements {
		ed := &elements[i]
		if ed.Path == "" {
			continue
		}
		if _, ok := cards[ed.Path]; !ok {
			cards[ed.Path] = ed.Cardinality()
		}
		byPath[ed.Path] = ed
		if ed.IsRemoved() {
			removed = append(removed, ed.Path)
		}
	}

	keys := make(map[string]int)
	for i := range elements {
		ed := &elements[i]
		if ed.Depth() < 1 || isRemovedPath(ed.Path, removed) {
			continue
		}
		// Ancestors count with their first declared cardinality, so slices
		// sharing a path keep their own bounds.
		parent := ed.Path[:strings.LastIndex(ed.Path, ".")]
		combined := cardinality.Combine(cardinality.Along(parent, cards), ed.Cardinality())
		name := element.ShortName(ed.Path)

		if element.IsAttribute(ed, byPath, cfg) {
			s.Attributes = append(s.Attributes, Attribute{
				Name:        name,
				Type:        attributeType(ed, name),
				Cardinality: combined,
				Path:        ed.Path,
				SliceName:   attributeSlice(ed),
			})
		}

		field := strings.ReplaceAll(name, "[x]", "")
		for _, t := range ed.Type {
			if t.Code != "Reference" {
				continue
			}
			for _, url := range t.TargetProfile {
				if strings.Contains(url, "Extension") {
					continue
				}
				target := registry.LastSegment(url)
				ref := Reference{Key: field, Target: target, Field: field, Cardinality: combined}
				if len(t.TargetProfile) > 1 {
					ref.Key = field + "_to_" + target
				}
				if i, ok := keys[ref.Key]; ok {
					s.References[i] = ref
					continue
				}
				keys[ref.Key] = len(s.References)
				s.References = append(s.References, ref)
			}
		}
	}
}

func isRemovedPath(path string, removed []string) bool {
	for _, r := range removed {
		if path == r {
			return true
		}
	}
	return snapshot.HiddenBy(path, removed)
}

func attributeType(ed *registry.ElementDefinition, name string) string {
	if len(ed.Type) == 0 {
		return "unknown"
	}
	if !strings.HasSuffix(name, "[x]") {
		return element.TypeCode(ed.Type[0].Code)
	}
	codes := make([]string, len(ed.Type))
	for i, t := range ed.Type {
		codes[i] = element.TypeCode(t.Code)
	}
	return strings.Join(codes, " | ")
}

func attributeSlice(ed *registry.ElementDefinition) string {
	if ed.SliceName != "" {
		return ed.SliceName
	}
	if ed.Slicing != nil {
		return "sliced"
	}
	return ""
}

// directReferences returns the first target of every depth-1 Reference
// element that is not removed and not an extension slot.
func directReferences(elements []registry.ElementDefinition) []Reference {
	var refs []Reference
	keys := make(map[string]int)
	for i := range elements {
		ed := &elements[i]
		if ed.Depth() != 1 || ed.IsRemoved() {
			continue
		}
		if strings.HasSuffix(ed.Path, "extension") || strings.HasSuffix(ed.Path, "modifierExtension") {
			continue
		}
		if ed.FirstTypeCode() != "Reference" || len(ed.Type[0].TargetProfile) == 0 {
			continue
		}
		url := ed.Type[0].TargetProfile[0]
		if strings.Contains(url, "Extension") {
			continue
		}
		name := ed.Name()
		ref := Reference{Key: name, Target: registry.LastSegment(url), Field: name, Cardinality: ed.Cardinality()}
		if i, ok := keys[name]; ok {
			refs[i] = ref
			continue
		}
		keys[name] = len(refs)
		refs = append(refs, ref)
	}
	return refs
}

// Class is a diagram node.
type Class struct {
	Name string

	// Stereotype is the base type shown as <<Stereotype>>, or "".
	Stereotype string
	DocURL     string

	// Structure is nil for classes that could not be resolved.
	Structure *Structure
}

// Edge is a diagram association.
type Edge struct {
	Source      string
	Target      string
	Field       string
	Cardinality cardinality.Cardinality
}

// Diagram is an ordered set of classes and associations.
type Diagram struct {
	Mode    Mode
	Classes []Class
	Edges   []Edge
}

// BaseResolver loads core definitions of referenced classes.
type BaseResolver interface {
	LoadBase(ctx context.Context, baseURL string) (*registry.StructureDefinition, error)
}

// DiagramOptions configure BuildDiagram.
type DiagramOptions struct {
	Mode        Mode
	Config      *config.Config
	FHIRVersion profiledoc.FHIRVersion

	// Resolver is consulted for referenced classes no structure defines.
	// It may be nil.
	Resolver BaseResolver
}

// BuildDiagram lays out structures as classes and edges.
func BuildDiagram(ctx context.Context, structures []*Structure, opts DiagramOptions) *Diagram {
	if opts.Config == nil {
		opts.Config = config.New()
	}
	if opts.Mode == ModeReferences {
		return referencesDiagram(structures, opts.Config)
	}

	cfg := opts.Config
	docsBase := opts.FHIRVersion.DocsBaseURL()
	d := &Diagram{Mode: ModeComplete}

	related := make(map[string]bool)
	for _, s := range structures {
		if len(s.References) > 0 {
			related[s.Name] = true
		}
		for _, ref := range s.References {
			related[cfg.MapName(ref.Target)] = true
		}
	}

	defined := make(map[string]bool)
	for _, s := range structures {
		if !related[s.Name] || defined[s.Name] {
			continue
		}
		stereotype := "Resource"
		if s.BaseType != "" {
			stereotype = cfg.MapName(s.BaseType)
		}
		d.Classes = append(d.Classes, Class{
			Name:       s.Name,
			Stereotype: stereotype,
			DocURL:     docURL(s, cfg, docsBase),
			Structure:  s,
		})
		defined[s.Name] = true
	}

	var missing []string
	for name := range related {
		if !defined[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)

	for _, name := range missing {
		if s := resolve(ctx, name, opts); s != nil {
			d.Classes = append(d.Classes, Class{
				Name:      name,
				DocURL:    docURL(s, cfg, docsBase),
				Structure: s,
			})
		} else {
			d.Classes = append(d.Classes, Class{
				Name:       name,
				Stereotype: "Resource",
				DocURL:     docsBase + strings.ToLower(name) + ".html",
			})
		}
		defined[name] = true
	}

	for _, s := range structures {
		for _, ref := range s.References {
			d.Edges = append(d.Edges, Edge{
				Source:      s.Name,
				Target:      cfg.MapName(ref.Target),
				Field:       ref.Field,
				Cardinality: ref.Cardinality,
			})
		}
	}
	return d
}

// resolve loads a referenced core type that no input defines.
func resolve(ctx context.Context, name string, opts DiagramOptions) *Structure {
	if opts.Resolver == nil {
		return nil
	}
	sd, err := opts.Resolver.LoadBase(ctx, registry.GetSDForResource(name))
	if err != nil {
		logger.Warn("could not resolve class %s: %v", name, err)
		return nil
	}
	s := BuildStructure(sd, opts.Config, ModeComplete)
	if s == nil {
		return nil
	}
	s.Local = false
	s.ID = strings.ToLower(name)
	return s
}

func docURL(s *Structure, cfg *config.Config, docsBase string) string {
	if s.Local {
		return cfg.LocalDocURL(s.ID)
	}
	return docsBase + strings.ToLower(s.ID) + ".html"
}

func referencesDiagram(structures []*Structure, cfg *config.Config) *Diagram {
	d := &Diagram{Mode: ModeReferences}
	defined := make(map[string]bool)
	add := func(name string) {
		if !defined[name] {
			defined[name] = true
			d.Classes = append(d.Classes, Class{Name: name})
		}
	}

	for _, s := range structures {
		add(s.Name)
		for _, ref := range s.References {
			add(cfg.MapName(ref.Target))
		}
	}
	for _, s := range structures {
		for _, ref := range s.References {
			d.Edges = append(d.Edges, Edge{
				Source:      s.Name,
				Target:      cfg.MapName(ref.Target),
				Field:       ref.Field,
				Cardinality: ref.Cardinality,
			})
		}
	}
	return d
}
