package render

import (
	"io"
	"sort"
	"strconv"

	"github.com/gofhir/profiledoc/pkg/analysis"
)

var plantUMLHeader = []string{
	"@startuml",
	"",
	"hide empty members",
	"skinparam class {",
	"    BackgroundColor White",
	"    ArrowColor Black",
	"    BorderColor Black",
	"}",
	"",
}

// PlantUML writes d as a PlantUML class diagram. Complete diagrams carry
// stereotypes, documentation links, attributes and directed associations;
// reference diagrams carry bare classes and undirected associations.
func PlantUML(w io.Writer, d *analysis.Diagram) error {
	p := newPrinter(w)
	p.println(plantUMLHeader...)

	arrow := "-->"
	if d.Mode == analysis.ModeReferences {
		arrow = "--"
		for _, c := range d.Classes {
			p.printf("class %s\n", c.Name)
		}
	} else {
		for _, c := range d.Classes {
			plantUMLClass(p, c)
		}
	}

	p.println("")
	for _, e := range d.Edges {
		p.printf("%s \"%s\" %s %s : \"%s\"\n", e.Source, e.Cardinality, arrow, e.Target, e.Field)
	}
	p.println("", "@enduml")
	return p.err
}

func plantUMLClass(p *printer, c analysis.Class) {
	if c.Stereotype != "" {
		p.printf("class %s <<%s>> [[%s %s _blank]] {\n", c.Name, c.Stereotype, c.DocURL, c.Name)
	} else {
		p.printf("class %s [[%s %s _blank]] {\n", c.Name, c.DocURL, c.Name)
	}
	if c.Structure != nil {
		for _, line := range attributeLines(c.Structure.Attributes) {
			p.println("    " + line)
		}
	}
	p.println("}")
}

// attributeLines sorts attributes by name. Attributes sharing a name are
// told apart by their slice name, or by their position.
func attributeLines(attrs []analysis.Attribute) []string {
	groups := make(map[string][]analysis.Attribute)
	var names []string
	for _, a := range attrs {
		if _, ok := groups[a.Name]; !ok {
			names = append(names, a.Name)
		}
		groups[a.Name] = append(groups[a.Name], a)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		group := groups[name]
		for i, a := range group {
			label := a.Name
			if len(group) > 1 {
				if a.SliceName != "" {
					label += " (" + a.SliceName + ")"
				} else {
					label += " (slice " + strconv.Itoa(i+1) + ")"
				}
			}
			lines = append(lines, label+" : "+a.Type+" ["+a.Cardinality.String()+"]")
		}
	}
	return lines
}
