package render

import (
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gofhir/profiledoc/pkg/query"
	"github.com/gofhir/profiledoc/pkg/registry"
)

// ErrNoSnapshot is returned when a listing is asked for a definition
// without snapshot elements.
var ErrNoSnapshot = errors.New("structure definition has no snapshot elements")

// ListStyle selects the layout of a listing.
type ListStyle string

// Listing styles.
const (
	ListSimple     ListStyle = "simple"
	ListDetailed   ListStyle = "detailed"
	ListTree       ListStyle = "tree"
	ListReferences ListStyle = "references"
)

// ParseListStyle accepts a style name; "" selects ListSimple.
func ParseListStyle(s string) (ListStyle, error) {
	switch style := ListStyle(strings.ToLower(strings.TrimSpace(s))); style {
	case "":
		return ListSimple, nil
	case ListSimple, ListDetailed, ListTree, ListReferences:
		return style, nil
	default:
		return "", errors.New("unknown listing style " + strconv.Quote(s))
	}
}

// ListOptions configure Listing.
type ListOptions struct {
	Style  ListStyle
	Filter *query.Filter
}

// Listing writes the snapshot elements of sd in the chosen style.
func Listing(w io.Writer, sd *registry.StructureDefinition, opts ListOptions) error {
	elements := sd.SnapshotElements()
	if len(elements) == 0 {
		return ErrNoSnapshot
	}
	elements = opts.Filter.Apply(elements)

	p := newPrinter(w)
	p.printf("Resource: %s (FHIR version: %s)\n", orUnknown(sd.Type), orUnknown(sd.FhirVersion))
	if f := opts.Filter; f != nil {
		if f.Prefix != "" {
			p.printf("Filtered by: %s\n", f.Prefix)
		}
		if f.Expression != "" {
			p.printf("Where: %s\n", f.Expression)
		}
	}
	p.printf("Total elements: %d\n\n", len(elements))

	switch opts.Style {
	case ListDetailed:
		listDetailed(p, elements)
	case ListTree:
		listTree(p, elements)
	case ListReferences:
		listReferences(p, elements)
	default:
		listSimple(p, elements)
	}
	return p.err
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// listCardinality renders [min..max] with "?" for undeclared bounds.
func listCardinality(ed *registry.ElementDefinition) string {
	lo, hi := "?", "?"
	if ed.Min != nil {
		lo = strconv.Itoa(*ed.Min)
	}
	if ed.Max != nil {
		hi = *ed.Max
	}
	return "[" + lo + ".." + hi + "]"
}

func typeSuffix(ed *registry.ElementDefinition) string {
	if len(ed.Type) == 0 {
		return ""
	}
	return " (" + strings.Join(ed.TypeCodes(), ", ") + ")"
}

func listSimple(p *printer, elements []registry.ElementDefinition) {
	for i := range elements {
		ed := &elements[i]
		p.printf("%s %s%s\n", orUnknown(ed.Path), listCardinality(ed), typeSuffix(ed))
	}
}

func listDetailed(p *printer, elements []registry.ElementDefinition) {
	for i := range elements {
		ed := &elements[i]
		p.printf("Path: %s\n", orUnknown(ed.Path))
		if ed.Definition != "" {
			p.printf("  Definition: %s\n", ed.Definition)
		}
		if ed.HasMin() || ed.HasMax() {
			p.printf("  Cardinality: %s\n", listCardinality(ed))
		}
		if len(ed.Type) > 0 {
			p.printf("  Types: %s\n", strings.Join(ed.TypeCodes(), ", "))
			if targets := targetNames(ed); len(targets) > 0 {
				p.printf("  References to: %s\n", strings.Join(targets, ", "))
			}
		}
		p.println("")
	}
}

// targetNames returns the last segment of every Reference target, without
// any fragment.
func targetNames(ed *registry.ElementDefinition) []string {
	var names []string
	for _, t := range ed.Type {
		if t.Code != "Reference" {
			continue
		}
		for _, url := range t.TargetProfile {
			names = append(names, targetName(url))
		}
	}
	return names
}

func targetName(url string) string {
	name := url
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	} else if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	name, _, _ = strings.Cut(name, "#")
	return name
}

func listReferences(p *printer, elements []registry.ElementDefinition) {
	disabled := make(map[string]bool)
	for i := range elements {
		if elements[i].IsRemoved() {
			disabled[elements[i].Path] = true
		}
	}

	sorted := make([]*registry.ElementDefinition, len(elements))
	for i := range elements {
		sorted[i] = &elements[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	count := 0
	seen := make(map[string]bool)
	for _, ed := range sorted {
		if seen[ed.Path] || !ed.HasTypeCode("Reference") || ed.IsRemoved() || hasDisabledParent(ed.Path, disabled) {
			continue
		}
		seen[ed.Path] = true
		count++

		p.printf("Path: %s %s\n", ed.Path, listCardinality(ed))
		if targets := targetNames(ed); len(targets) > 0 {
			p.printf("  References to: %s\n", strings.Join(targets, ", "))
		} else {
			p.println("  References to: Any resource (no specific target profiles)")
		}
		p.println("")
	}
	if count == 0 {
		p.println("No reference elements found in this structure definition.")
	}
}

func hasDisabledParent(path string, disabled map[string]bool) bool {
	for i := strings.LastIndex(path, "."); i > 0; i = strings.LastIndex(path[:i], ".") {
		if disabled[path[:i]] {
			return true
		}
	}
	return false
}

type treeNode struct {
	name     string
	element  *registry.ElementDefinition
	children []*treeNode
	index    map[string]*treeNode
}

func (n *treeNode) child(name string) *treeNode {
	if c, ok := n.index[name]; ok {
		return c
	}
	c := &treeNode{name: name, index: make(map[string]*treeNode)}
	n.index[name] = c
	n.children = append(n.children, c)
	return c
}

func listTree(p *printer, elements []registry.ElementDefinition) {
	root := &treeNode{index: make(map[string]*treeNode)}
	for i := range elements {
		ed := &elements[i]
		if ed.Path == "" {
			continue
		}
		parts := strings.Split(ed.Path, ".")
		if ed.SliceName != "" {
			parts[len(parts)-1] += ":" + ed.SliceName
		}
		node := root
		for _, part := range parts {
			node = node.child(part)
		}
		node.element = ed
	}
	printTree(p, root.children, "", true)
}

func printTree(p *printer, nodes []*treeNode, prefix string, top bool) {
	for i, n := range nodes {
		last := i == len(nodes)-1

		label := n.name
		if n.element != nil {
			label += " " + listCardinality(n.element) + typeSuffix(n.element)
		}

		childPrefix := ""
		switch {
		case top:
			p.println(label)
		case last:
			p.println(prefix + "└── " + label)
			childPrefix = prefix + "    "
		default:
			p.println(prefix + "├── " + label)
			childPrefix = prefix + "│   "
		}
		printTree(p, n.children, childPrefix, false)
	}
}
